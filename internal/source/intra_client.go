package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intrawatch/internal/errors"
	"intrawatch/internal/snapshot"

	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05"

type dashboard struct {
	Board struct {
		Projets []struct {
			Title     string `json:"title"`
			TitleLink string `json:"title_link"`
		} `json:"projets"`
	} `json:"board"`
	Message string `json:"message"`
}

type projectDetail struct {
	Title        string `json:"title"`
	CodeModule   string `json:"codemodule"`
	ScolarYear   any    `json:"scolaryear"`
	CodeInstance string `json:"codeinstance"`
	CodeActi     string `json:"codeacti"`
	Message      string `json:"message"`
}

type fileEntry struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Size     uint64 `json:"size"`
	CTime    string `json:"ctime"`
	MTime    string `json:"mtime"`
	FullPath string `json:"fullpath"`
	Modifier struct {
		Title string `json:"title"`
	} `json:"modifier"`
}

func (e fileEntry) isDir() bool {
	return e.Type == "d" || e.Type == "dir"
}

// IntraClient talks to an intranet reached through an autologin URL, which
// carries the credentials in its path.
type IntraClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewIntraClient(autologin string, httpClient *http.Client, logger *zap.Logger) *IntraClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntraClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(autologin), "/"),
		httpClient: httpClient,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

// CheckAccess fetches the dashboard once. Any rejection is Unauthorized so
// bootstrap can stop before the first cycle.
func (c *IntraClient) CheckAccess(ctx context.Context) error {
	var d dashboard
	if err := c.getJSON(ctx, "/", &d); err != nil {
		if errors.IsUnauthorized(err) {
			return err
		}
		return fmt.Errorf("checking autologin: %w", err)
	}
	if d.Message != "" {
		return errors.Unauthorized(fmt.Sprintf("intranet rejected autologin: %s", d.Message))
	}
	return nil
}

func (c *IntraClient) ListProjects(ctx context.Context) ([]ProjectRef, error) {
	var d dashboard
	if err := c.getJSON(ctx, "/", &d); err != nil {
		return nil, fmt.Errorf("fetching dashboard: %w", err)
	}
	if d.Message != "" {
		return nil, errors.Transient("fetching dashboard", fmt.Errorf("%s", d.Message))
	}

	projects := make([]ProjectRef, 0, len(d.Board.Projets))
	for _, p := range d.Board.Projets {
		ref := ProjectRef{Title: p.Title, Link: p.TitleLink}
		parseLink(&ref)
		projects = append(projects, ref)
	}
	return projects, nil
}

func (c *IntraClient) ListFiles(ctx context.Context, project ProjectRef) ([]snapshot.FileRecord, error) {
	if project.Module == "" {
		if err := c.resolve(ctx, &project); err != nil {
			return nil, err
		}
	}

	var entries []fileEntry
	if err := c.getJSON(ctx, project.filesPath(), &entries); err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", project, err)
	}

	var files []snapshot.FileRecord
	for _, e := range entries {
		if !e.isDir() {
			files = c.appendRecord(files, project, e, "")
			continue
		}

		// Directories are expanded one level only.
		var children []fileEntry
		if err := c.getJSON(ctx, strings.TrimRight(e.FullPath, "/")+"/", &children); err != nil {
			return nil, fmt.Errorf("listing directory %s of %s: %w", e.Title, project, err)
		}
		for _, child := range children {
			if child.isDir() {
				c.logger.Debug("skipping nested directory",
					zap.String("project", project.String()),
					zap.String("directory", e.Title+"/"+child.Title))
				continue
			}
			files = c.appendRecord(files, project, child, e.Title)
		}
	}
	return files, nil
}

func (c *IntraClient) FetchContent(ctx context.Context, file snapshot.FileRecord) (io.ReadCloser, error) {
	if file.RemotePath == "" {
		return nil, errors.NotFound(fmt.Sprintf("no remote path for %s", file.Title))
	}
	resp, err := c.do(ctx, file.RemotePath, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", file.Title, err)
	}
	return resp.Body, nil
}

// resolve fills module coordinates from the project page when the link did
// not carry them.
func (c *IntraClient) resolve(ctx context.Context, project *ProjectRef) error {
	var detail projectDetail
	if err := c.getJSON(ctx, project.Link, &detail); err != nil {
		return fmt.Errorf("fetching project %s: %w", project.Title, err)
	}
	if detail.Message != "" {
		return errors.Transient(fmt.Sprintf("fetching project %s", project.Title), fmt.Errorf("%s", detail.Message))
	}
	project.Module = detail.CodeModule
	project.Year = fmt.Sprint(detail.ScolarYear)
	project.Instance = detail.CodeInstance
	project.Activity = detail.CodeActi
	return nil
}

// appendRecord adds e to files. Entries whose timestamps cannot be read are
// left out so the snapshot keeps their last good record.
func (c *IntraClient) appendRecord(files []snapshot.FileRecord, project ProjectRef, e fileEntry, dir string) []snapshot.FileRecord {
	rec, err := e.record(dir)
	if err != nil {
		c.logger.Warn("skipping file with unreadable timestamp",
			zap.String("project", project.String()),
			zap.String("file", rec.Title),
			zap.Error(err))
		return files
	}
	return append(files, rec)
}

func (e fileEntry) record(dir string) (snapshot.FileRecord, error) {
	title := e.Title
	if dir != "" {
		title = dir + "/" + e.Title
	}
	rec := snapshot.FileRecord{
		Title:      title,
		Size:       e.Size,
		RemotePath: e.FullPath,
		Modifier:   e.Modifier.Title,
	}
	var err error
	if rec.CreatedAt, err = parseTime(e.CTime); err != nil {
		return rec, fmt.Errorf("ctime: %w", err)
	}
	if rec.ModifiedAt, err = parseTime(e.MTime); err != nil {
		return rec, fmt.Errorf("mtime: %w", err)
	}
	return rec, nil
}

// parseTime reads intranet timestamps. An empty value is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t, nil
}

// getJSON decodes a JSON endpoint. The intranet answers some failures with
// a 200 and a {"message": ...} object where an array was expected; those
// become Transient errors.
func (c *IntraClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, withFormat(path), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Transient("reading response", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		var failure struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &failure) == nil && failure.Message != "" {
			return errors.Transient(path, fmt.Errorf("%s", failure.Message))
		}
		return errors.Transient(fmt.Sprintf("decoding %s", path), err)
	}
	return nil
}

func withFormat(path string) string {
	if strings.Contains(path, "?") {
		return path + "&format=json"
	}
	return path + "?format=json"
}

func (c *IntraClient) do(ctx context.Context, path, accept string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitWithContext(ctx, c.retryDelay(attempt)); err != nil {
				return nil, errors.Transient("request cancelled", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, errors.Internal("building request", err)
		}
		req.Header.Set("Accept", accept)

		c.logger.Debug("intranet request", zap.String("path", path), zap.Int("attempt", attempt))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Transient("requesting "+path, err)
			continue
		}

		switch {
		case resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, errors.Unauthorized(fmt.Sprintf("intranet answered %s for %s", resp.Status, path))
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, errors.NotFound(fmt.Sprintf("intranet answered %s for %s", resp.Status, path))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = errors.Transient("requesting "+path, httpError(resp))
			continue
		default:
			return nil, errors.Transient("requesting "+path, httpError(resp))
		}
	}
	return nil, lastErr
}

func httpError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

func (c *IntraClient) retryDelay(attempt int) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
