// Package clean removes asset artifacts: database rows and the asset
// directory. Path checks keep deletion strictly inside the data dir.
package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/storage"
)

// Result summarizes a clean run.
type Result struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedPaths []string `json:"deleted_paths,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// ListAssets returns the asset ids present under the data dir, one per
// subdirectory. Hidden directories are ignored.
func ListAssets(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// ValidatePathSafety rejects deletion targets that escape the data dir or
// resolve to a filesystem root.
func ValidatePathSafety(target, dataDir string) error {
	target, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return err
	}

	if target == "" || target == "." || target == ".." {
		return fmt.Errorf("target path cannot be empty")
	}
	if target == string(filepath.Separator) || target == filepath.VolumeName(target)+string(filepath.Separator) {
		return fmt.Errorf("cannot delete root directory")
	}

	rel, err := filepath.Rel(dataDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("target path %s is outside data directory %s", target, dataDir)
	}
	return nil
}

// Asset deletes one asset's database rows and directory.
func Asset(dataDir string, db *storage.DB, assetID string) Result {
	var result Result

	assetPath := filepath.Join(dataDir, assetID)
	if err := ValidatePathSafety(assetPath, dataDir); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	dbFailed := false
	if db != nil {
		if err := db.DeleteAsset(assetID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("database error for %s: %v", assetID, err))
			dbFailed = true
		}
	}

	if _, err := os.Stat(assetPath); err == nil {
		if err := os.RemoveAll(assetPath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to delete %s: %v", assetPath, err))
			return result
		}
		result.DeletedPaths = append(result.DeletedPaths, assetPath)
		result.DeletedCount = 1
		log.Info("asset deleted", "asset", assetID, "path", assetPath)
		return result
	}

	// Directory already gone; the db rows alone still count as a clean.
	if !dbFailed {
		result.DeletedCount = 1
	}
	return result
}

// All deletes every asset under the data dir, or just the given ids.
func All(dataDir string, db *storage.DB, assetIDs []string) Result {
	var result Result

	if assetIDs == nil {
		ids, err := ListAssets(dataDir)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		assetIDs = ids
	}

	for _, id := range assetIDs {
		one := Asset(dataDir, db, id)
		result.DeletedCount += one.DeletedCount
		result.DeletedPaths = append(result.DeletedPaths, one.DeletedPaths...)
		result.Errors = append(result.Errors, one.Errors...)
	}
	return result
}
