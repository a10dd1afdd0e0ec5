package mmlseq

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrEmptyText = errors.New("mmlseq: nothing to export")

// ExportFileName names an MML text export after its creation time,
// e.g. "mml-20240131235959.txt".
func ExportFileName(t time.Time) string {
	return "mml-" + t.Format("20060102150405") + ".txt"
}

// ExportText saves text into dir under ExportFileName(now) and returns the
// written path. Blank text is refused with ErrEmptyText.
func ExportText(dir, text string, now time.Time) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "mmlseq: create export directory")
		}
	}
	path := filepath.Join(dir, ExportFileName(now))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", errors.Wrap(err, "mmlseq: write export")
	}
	return path, nil
}
