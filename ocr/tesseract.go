package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	langCheckTimeout = 10 * time.Second
	ocrTimeout       = 30 * time.Second
)

// Tesseract invokes the tesseract binary in TSV mode.
type Tesseract struct {
	bin string
}

// FindTesseract resolves the tesseract binary: an explicit path wins,
// otherwise PATH is searched.
func FindTesseract(explicit string) (*Tesseract, error) {
	if explicit != "" {
		if _, err := exec.LookPath(explicit); err != nil {
			return nil, fmt.Errorf("tesseract not found at %s", explicit)
		}
		return &Tesseract{bin: explicit}, nil
	}
	bin, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract not found on PATH; install it or pass --tesseract-cmd")
	}
	return &Tesseract{bin: bin}, nil
}

// ValidateLanguages checks that every language in lang (a "+"-joined list)
// has traineddata installed.
func (t *Tesseract) ValidateLanguages(ctx context.Context, lang string) error {
	ctx, cancel := context.WithTimeout(ctx, langCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.bin, "--list-langs")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("tesseract language check timed out")
		}
		return fmt.Errorf("list tesseract languages: %s", strings.TrimSpace(stderr.String()))
	}

	available := map[string]bool{}
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "List of") {
			available[line] = true
		}
	}

	var missing []string
	for _, req := range strings.Split(lang, "+") {
		if !available[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tesseract language data missing: %s; install the traineddata files or set TESSDATA_PREFIX",
			strings.Join(missing, ", "))
	}
	return nil
}

// RunTSV OCRs a single image and returns the raw TSV output.
func (t *Tesseract) RunTSV(ctx context.Context, imagePath, lang string, psm int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.bin,
		imagePath, "stdout", "-l", lang, "--psm", strconv.Itoa(psm), "tsv")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ocr timeout")
		}
		return "", fmt.Errorf("tesseract: %s", strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
