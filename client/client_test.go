package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrawatch/internal/api"
	"intrawatch/internal/logging"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/snapshot"
)

type fixedStatus struct{}

func (fixedStatus) State() reconcile.State { return reconcile.Idle }
func (fixedStatus) LastReport() *reconcile.Report {
	return &reconcile.Report{CycleID: "c-9", State: reconcile.Aborted, Skipped: []string{"Physics"}}
}

func TestClient(t *testing.T) {
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "projects.json"))
	snap := snapshot.New()
	snap.Put(&snapshot.ProjectSnapshot{Key: "C_C++", Title: "C/C++", Files: []snapshot.FileRecord{{Title: "a.pdf", Size: 3}}})
	require.NoError(t, store.Commit(context.Background(), snap))

	server := httptest.NewServer(api.NewRouter(api.NewStatusHandler(fixedStatus{}, store), logging.Nop()))
	defer server.Close()

	c := New(strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, c.Health())

	status, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, reconcile.Idle, status.State)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, reconcile.Aborted, status.LastReport.State)
	assert.Equal(t, []string{"Physics"}, status.LastReport.Skipped)

	p, err := c.Project("C/C++")
	require.NoError(t, err)
	assert.Equal(t, "C_C++", p.Key)
	assert.Equal(t, "C/C++", p.Title)
	require.Len(t, p.Files, 1)

	_, err = c.Project("Art")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
