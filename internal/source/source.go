// internal/source/source.go
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"intrawatch/internal/snapshot"
)

// ProjectRef identifies a project on the remote source.
type ProjectRef struct {
	Title    string
	Module   string
	Year     string
	Instance string
	Activity string
	Link     string
}

func (p ProjectRef) String() string {
	if p.Module == "" {
		return p.Title
	}
	return fmt.Sprintf("%s - %s", p.Module, p.Title)
}

// Source is the remote collaborator polled by the reconciliation driver.
// Failures are typed errors from internal/errors: Unauthorized, NotFound or
// Transient.
type Source interface {
	ListProjects(ctx context.Context) ([]ProjectRef, error)
	ListFiles(ctx context.Context, project ProjectRef) ([]snapshot.FileRecord, error)
	FetchContent(ctx context.Context, file snapshot.FileRecord) (io.ReadCloser, error)
}

// parseLink fills module coordinates from a project link of the form
// /module/<year>/<module>/<instance>/<activity>/project/.
func parseLink(ref *ProjectRef) bool {
	parts := strings.Split(strings.Trim(ref.Link, "/"), "/")
	if len(parts) < 5 || parts[0] != "module" {
		return false
	}
	ref.Year, ref.Module, ref.Instance, ref.Activity = parts[1], parts[2], parts[3], parts[4]
	return true
}

func (p ProjectRef) filesPath() string {
	return fmt.Sprintf("/module/%s/%s/%s/%s/project/file/", p.Year, p.Module, p.Instance, p.Activity)
}
