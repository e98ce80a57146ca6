// Package artifacts stores run outputs (failure screenshots, reports) in an
// S3-compatible bucket or a local directory.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Sink stores one artifact under key.
type Sink interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func keyPart(s string) string {
	s = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// ScreenshotKey is where a failed step's screenshot is stored.
func ScreenshotKey(runID, journey, step string) string {
	return path.Join("runs", keyPart(runID), keyPart(journey), keyPart(step)+".png")
}

// ReportKey is where a batch report is stored; ext is json, md or html.
func ReportKey(batchID, ext string) string {
	return path.Join("runs", keyPart(batchID), "report."+keyPart(ext))
}

// DirSink writes artifacts below a local directory.
type DirSink struct {
	Root string
}

// Put writes content to Root/key, creating parent directories.
func (d DirSink) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + key)
	target := filepath.Join(d.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("artifacts: create dir for %q: %w", key, err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %q: %w", key, err)
	}
	return nil
}
