// Package localfs persists finished research reports on the local
// filesystem, one directory per session.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/reports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// SaveReport writes the report as markdown under the session's directory
// and returns the file path. The write goes to a temp name first so a
// crash never leaves a half-written report behind.
func (a *Archive) SaveReport(_ context.Context, sessionID, report string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("archive report: session id is empty")
	}
	dir := filepath.Join(a.basePath, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	path := filepath.Join(dir, "report.md")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize report: %w", err)
	}
	return path, nil
}

// ReadReport loads a previously archived report.
func (a *Archive) ReadReport(_ context.Context, sessionID string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(a.basePath, sessionID, "report.md"))
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(raw), nil
}
