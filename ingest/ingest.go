// Package ingest resolves a Bilibili URL into a registered asset: metadata
// fetch, fingerprinting, provenance capture, manifest creation, and the
// asset/version rows in the database.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Xyri1/bili-assetizer/bilibili"
	"github.com/Xyri1/bili-assetizer/config"
	"github.com/Xyri1/bili-assetizer/core"
	"github.com/Xyri1/bili-assetizer/manifest"
	"github.com/Xyri1/bili-assetizer/storage"
)

// Result reports what ingest did.
type Result struct {
	AssetID     string `json:"asset_id"`
	Fingerprint string `json:"fingerprint"`
	VersionID   string `json:"version_id"`
	Title       string `json:"title"`
	Skipped     bool   `json:"skipped"`
}

// Fingerprint computes the stable content fingerprint over the metadata
// fields that identify a video version. Keys are sorted by the JSON encoder,
// so the digest is deterministic.
func Fingerprint(info *bilibili.ViewInfo) (string, error) {
	payload := map[string]any{
		"bvid":     info.BVID,
		"aid":      info.Aid,
		"cid":      info.Cid,
		"title":    info.Title,
		"duration": info.Duration,
		"pubdate":  info.Pubdate,
		"videos":   info.Videos,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Run ingests the video behind rawURL. An already-ingested asset with an
// unchanged fingerprint is skipped unless force is set.
func Run(ctx context.Context, cfg config.Settings, store *manifest.Store, db *storage.DB, client *bilibili.Client, rawURL string, force bool) (*Result, error) {
	bvid, err := bilibili.ExtractBVID(rawURL)
	if err != nil {
		return nil, err
	}
	sourceURL := bilibili.CanonicalURL(bvid)

	log.Info("fetching metadata", "bvid", bvid)
	view, viewRaw, err := client.View(ctx, bvid)
	if err != nil {
		return nil, fmt.Errorf("view api: %w", err)
	}

	fp, err := Fingerprint(view)
	if err != nil {
		return nil, err
	}

	if store.Exists(bvid) && !force {
		m, err := store.Load(bvid)
		if err == nil && m.Fingerprint == fp && m.Status == core.AssetIngested {
			log.Info("already ingested", "bvid", bvid, "fingerprint", fp[:12])
			return &Result{AssetID: bvid, Fingerprint: fp, Title: view.Title, Skipped: true}, nil
		}
	}

	_, playRaw, err := client.PlayURL(ctx, bvid, view.Cid)
	if err != nil {
		return nil, fmt.Errorf("playurl api: %w", err)
	}

	assetDir := store.AssetDir(bvid)
	apiDir := filepath.Join(assetDir, "source_api")
	if err := os.MkdirAll(apiDir, 0o755); err != nil {
		return nil, err
	}

	metadata, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(assetDir, "metadata.json"), metadata, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(apiDir, "view.json"), viewRaw, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(apiDir, "playurl.json"), playRaw, 0o644); err != nil {
		return nil, err
	}

	m := core.NewManifest(bvid, sourceURL)
	m.Status = core.AssetIngested
	m.Fingerprint = fp
	m.Paths = core.ManifestPaths{
		Metadata:      "metadata.json",
		SourceView:    "source_api/view.json",
		SourcePlayURL: "source_api/playurl.json",
	}
	if err := store.Save(m); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	versionID, err := db.UpsertAsset(bvid, sourceURL, fp)
	if err != nil {
		return nil, fmt.Errorf("register asset: %w", err)
	}

	log.Info("ingested", "bvid", bvid, "title", view.Title, "version", versionID)
	return &Result{
		AssetID:     bvid,
		Fingerprint: fp,
		VersionID:   versionID,
		Title:       view.Title,
	}, nil
}
