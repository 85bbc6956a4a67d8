package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndReadReport(t *testing.T) {
	archive, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := archive.SaveReport(context.Background(), "sess-1", "# Findings\n\nBody.")
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("sess-1", "report.md")) {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	report, err := archive.ReadReport(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if report != "# Findings\n\nBody." {
		t.Errorf("report = %q", report)
	}
}

func TestSaveReportOverwrites(t *testing.T) {
	archive, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := archive.SaveReport(context.Background(), "sess-1", "draft"); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if _, err := archive.SaveReport(context.Background(), "sess-1", "final"); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	report, err := archive.ReadReport(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if report != "final" {
		t.Errorf("report = %q", report)
	}
}

func TestSaveReportRejectsEmptySession(t *testing.T) {
	archive, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := archive.SaveReport(context.Background(), "", "report"); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
