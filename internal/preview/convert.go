package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrConverterUnavailable means the converter binary is not installed
	// on this host at all. Distinct from a failed conversion so callers
	// can report a service problem instead of an input problem.
	ErrConverterUnavailable = errors.New("document converter is not available")

	// ErrConversionFailed means the converter ran but produced no usable
	// output; the wrapped message carries its diagnostic output.
	ErrConversionFailed = errors.New("document conversion failed")
)

// DocumentConverter turns an office document into a PDF inside outDir and
// returns the produced path.
type DocumentConverter interface {
	ToPDF(ctx context.Context, srcPath, outDir string) (string, error)
}

// SofficeConverter shells out to LibreOffice in headless mode.
type SofficeConverter struct {
	Binary  string
	Timeout time.Duration
}

func NewSofficeConverter(timeout time.Duration) *SofficeConverter {
	return &SofficeConverter{Binary: "soffice", Timeout: timeout}
}

func (c *SofficeConverter) ToPDF(ctx context.Context, srcPath, outDir string) (string, error) {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return "", ErrConverterUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary,
		"--headless", "--norestore", "--convert-to", "pdf", "--outdir", outDir, srcPath)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: timed out after %s", ErrConversionFailed, c.Timeout)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConversionFailed, strings.TrimSpace(string(out)))
	}

	base := filepath.Base(srcPath)
	produced := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("%w: no output produced: %s", ErrConversionFailed, strings.TrimSpace(string(out)))
	}
	return produced, nil
}
