// client/client.go
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intrawatch/internal/api"
	"intrawatch/internal/snapshot"
)

// Client talks to the status server of a running intrawatch.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

func (c *Client) Health() error {
	return c.get("/health", &map[string]any{})
}

func (c *Client) Status() (*api.StatusResponse, error) {
	var status api.StatusResponse
	if err := c.get("/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Project returns the snapshotted state of one project.
func (c *Client) Project(key string) (*snapshot.ProjectSnapshot, error) {
	var p snapshot.ProjectSnapshot
	if err := c.get("/api/snapshot?project="+url.QueryEscape(key), &p); err != nil {
		return nil, err
	}
	p.Key = snapshot.NormalizeKey(key)
	return &p, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			return fmt.Errorf("unexpected status: %s: %s", resp.Status, body.Error)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
