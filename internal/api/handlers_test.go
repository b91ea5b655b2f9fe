package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrawatch/internal/logging"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/snapshot"
)

type staticStatus struct {
	state  reconcile.State
	report *reconcile.Report
}

func (s staticStatus) State() reconcile.State        { return s.state }
func (s staticStatus) LastReport() *reconcile.Report { return s.report }

func setupRouter(t *testing.T, status Status) (http.Handler, *snapshot.FileStore) {
	t.Helper()
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "projects.json"))
	return NewRouter(NewStatusHandler(status, store), logging.Nop()), store
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, staticStatus{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatus(t *testing.T) {
	router, _ := setupRouter(t, staticStatus{
		state:  reconcile.Processing,
		report: &reconcile.Report{CycleID: "c-1", State: reconcile.Aborted, Notified: 2},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State      string `json:"state"`
		LastReport struct {
			CycleID  string `json:"cycle_id"`
			State    string `json:"state"`
			Notified int    `json:"notified"`
		} `json:"last_report"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "processing", body.State)
	assert.Equal(t, "c-1", body.LastReport.CycleID)
	assert.Equal(t, "aborted", body.LastReport.State)
	assert.Equal(t, 2, body.LastReport.Notified)
}

func TestSnapshot(t *testing.T) {
	router, store := setupRouter(t, staticStatus{})

	snap := snapshot.New()
	snap.Put(&snapshot.ProjectSnapshot{Key: "Math", Title: "Math", Files: []snapshot.FileRecord{{Title: "subject.pdf", Size: 100}}})
	require.NoError(t, store.Commit(context.Background(), snap))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"all projects", "/api/snapshot", http.StatusOK, `"subject.pdf"`},
		{"one project", "/api/snapshot?project=Math", http.StatusOK, `"title":"Math"`},
		{"unknown project", "/api/snapshot?project=Art", http.StatusNotFound, `"NOT_FOUND"`},
		{"wrong method", "/api/snapshot", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.wantStatus == http.StatusMethodNotAllowed {
				method = http.MethodPost
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	router, store := setupRouter(t, staticStatus{})
	require.NoError(t, os.WriteFile(store.Path(), []byte("{"), 0o644))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"CORRUPT"`)
}
