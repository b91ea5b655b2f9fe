package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Fields      []Field      `json:"fields,omitempty"`
}

type webhookBody struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []embed `json:"embeds,omitempty"`
}

// Webhook posts payloads to a Discord-compatible webhook URL.
type Webhook struct {
	url        string
	username   string
	avatar     string
	footer     string
	httpClient *http.Client
}

type WebhookOptions struct {
	URL      string
	Username string
	Avatar   string
	Footer   string // e.g. "intrawatch - 1.2.0", used when a message has none
	Client   *http.Client
}

func NewWebhook(opts WebhookOptions) *Webhook {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Webhook{
		url:        opts.URL,
		username:   opts.Username,
		avatar:     opts.Avatar,
		footer:     opts.Footer,
		httpClient: opts.Client,
	}
}

func (w *Webhook) Notify(ctx context.Context, p Payload) error {
	switch {
	case p.Message != nil:
		return w.sendMessage(ctx, p.Message)
	case p.Attachment != nil:
		return w.sendFile(ctx, p.Attachment)
	}
	return fmt.Errorf("empty payload")
}

func (w *Webhook) sendMessage(ctx context.Context, m *Message) error {
	e := embed{
		Title:       m.Title,
		Description: m.Description,
		Color:       m.Color,
		Fields:      m.Fields,
	}
	if !m.Timestamp.IsZero() {
		e.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}
	if footer := m.Footer; footer != "" || w.footer != "" {
		if footer == "" {
			footer = w.footer
		}
		e.Footer = &embedFooter{Text: footer}
	}

	data, err := json.Marshal(webhookBody{Username: w.username, AvatarURL: w.avatar, Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("marshaling webhook message: %w", err)
	}
	return w.post(ctx, "application/json", bytes.NewReader(data))
}

func (w *Webhook) sendFile(ctx context.Context, a *Attachment) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(webhookBody{Username: w.username, AvatarURL: w.avatar})
	if err != nil {
		return fmt.Errorf("marshaling webhook metadata: %w", err)
	}
	if err := mw.WriteField("payload_json", string(meta)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", a.Name)
	if err != nil {
		return err
	}
	if _, err := part.Write(a.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return w.post(ctx, mw.FormDataContentType(), &buf)
}

func (w *Webhook) post(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook answered %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
