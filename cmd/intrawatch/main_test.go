package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrawatch/internal/api"
	"intrawatch/internal/logging"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/snapshot"
)

func init() {
	color.NoColor = true
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("a\nb\nc\n"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("a\nB\nc\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"diff", oldPath, newPath})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "-b\n+B\n")
	assert.Contains(t, out.String(), "+1, -1 (inline)")
}

func TestDiffCommandIdentical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "same.md")
	require.NoError(t, os.WriteFile(path, []byte("# title\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"diff", path, path})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Files are identical\n", out.String())
}

func TestDiffCommandNotComparable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2}, 0o644))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"diff", path, path})
	assert.Error(t, rootCmd.Execute())
}

func TestPrintSnapshot(t *testing.T) {
	snap := snapshot.New()
	snap.Put(&snapshot.ProjectSnapshot{
		Key:    "Math",
		Title:  "Math",
		Module: "B-MAT-100",
		Files: []snapshot.FileRecord{{
			Title:      "subject.pdf",
			Size:       100,
			ModifiedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	})

	var out bytes.Buffer
	require.NoError(t, printSnapshot(&out, snap, snap.Keys()))
	assert.Contains(t, out.String(), "Math  [B-MAT-100]\n")
	assert.Contains(t, out.String(), "subject.pdf")
	assert.Contains(t, out.String(), "2024-01-02 03:04:05")

	assert.Error(t, printSnapshot(&out, snap, []string{"Art"}))

	out.Reset()
	require.NoError(t, printSnapshot(&out, snapshot.New(), nil))
	assert.Equal(t, "No projects recorded yet\n", out.String())
}

func TestSnapshotShowCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfg := `{"notify_enabled": false, "data_dir": "` + filepath.ToSlash(dir) + `"}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "snapshot", "show"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "No projects recorded yet\n", out.String())
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	onceCmd.SetOut(&out)
	printReport(onceCmd, &reconcile.Report{
		CycleID:  "c-1",
		State:    reconcile.Aborted,
		Events:   2,
		Notified: 2,
		Skipped:  []string{"Physics"},
		Err:      "committing snapshot: disk full",
	})

	assert.Contains(t, out.String(), "cycle c-1: aborted")
	assert.Contains(t, out.String(), "skipped Physics")
	assert.Contains(t, out.String(), "error committing snapshot: disk full")
}

type idleStatus struct{}

func (idleStatus) State() reconcile.State        { return reconcile.Idle }
func (idleStatus) LastReport() *reconcile.Report { return nil }

func TestRemoteCommands(t *testing.T) {
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "projects.json"))
	snap := snapshot.New()
	snap.Put(&snapshot.ProjectSnapshot{Key: "Math", Title: "Math", Files: []snapshot.FileRecord{{Title: "subject.pdf", Size: 100}}})
	require.NoError(t, store.Commit(context.Background(), snap))

	server := httptest.NewServer(api.NewRouter(api.NewStatusHandler(idleStatus{}, store), logging.Nop()))
	defer server.Close()
	defer func() { snapshotAddr, statusAddr = "", "" }()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"snapshot", "show", "--addr", server.URL, "Math"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Math\n")
	assert.Contains(t, out.String(), "subject.pdf")

	rootCmd.SetArgs([]string{"snapshot", "show", "--addr", server.URL})
	assert.Error(t, rootCmd.Execute())

	out.Reset()
	rootCmd.SetArgs([]string{"status", "--addr", server.URL})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "state: idle\nno cycle has completed yet\n", out.String())
}
