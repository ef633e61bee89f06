package wiring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reneee98/layers/pkg/storage"
)

func TestNewWorkspaceProvidesRepoAndAudit(t *testing.T) {
	tempDir := t.TempDir()
	ws, err := NewWorkspace(context.Background(), tempDir)
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	defer ws.Close()

	if ws.Repo == nil || ws.Audit == nil || ws.Logger == nil {
		t.Fatalf("expected populated workspace, got %+v", ws)
	}
	if _, err := os.Stat(filepath.Join(tempDir, storage.LayersDir, storage.DatabaseFile)); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	if err := ws.Audit.Log("test.workspace", "tester", nil); err != nil {
		t.Fatalf("audit log failed: %v", err)
	}
}

func TestNewWorkspaceRejectsBadConfig(t *testing.T) {
	t.Setenv("LAYERS_DB_DRIVER", "oracle")
	if _, err := NewWorkspace(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
