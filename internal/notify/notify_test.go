package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intrawatch/internal/snapshot"
)

func TestWebhookMessage(t *testing.T) {
	var got webhookBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	hook := NewWebhook(WebhookOptions{
		URL:      server.URL,
		Username: "Epitech Intranet",
		Footer:   "intrawatch - test",
	})

	msg := &Message{
		Title:     "Subject update !",
		Fields:    []Field{{Name: "Project:", Value: "Math"}},
		Color:     ColorGreen,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, hook.Notify(context.Background(), MessagePayload(msg)))

	assert.Equal(t, "Epitech Intranet", got.Username)
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Subject update !", e.Title)
	assert.Equal(t, ColorGreen, e.Color)
	assert.Equal(t, "2024-03-01T10:00:00Z", e.Timestamp)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "intrawatch - test", e.Footer.Text)
	assert.Equal(t, []Field{{Name: "Project:", Value: "Math"}}, e.Fields)
}

func TestWebhookAttachment(t *testing.T) {
	var (
		fileName string
		fileData string
		meta     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		meta = r.FormValue("payload_json")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		fileName, fileData = hdr.Filename, string(data)
	}))
	defer server.Close()

	hook := NewWebhook(WebhookOptions{URL: server.URL, Username: "bot"})
	err := hook.Notify(context.Background(), AttachmentPayload(&Attachment{Name: "subject.pdf", Data: []byte("%PDF")}))
	require.NoError(t, err)

	assert.Equal(t, "subject.pdf", fileName)
	assert.Equal(t, "%PDF", fileData)
	assert.Contains(t, meta, `"username":"bot"`)
}

func TestWebhookErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	hook := NewWebhook(WebhookOptions{URL: server.URL})

	err := hook.Notify(context.Background(), MessagePayload(&Message{Title: "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")

	err = hook.Notify(context.Background(), Payload{})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	assert.NoError(t, n.Notify(context.Background(), MessagePayload(&Message{})))
}

func TestModifiedMessage(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	old := snapshot.FileRecord{Title: "subject.pdf", Size: 150, CreatedAt: t1, ModifiedAt: t1}
	cur := snapshot.FileRecord{Title: "subject.pdf", Size: 100, CreatedAt: t1, ModifiedAt: t2, Modifier: "jane.doe"}

	msg := ModifiedMessage(Project{Title: "Math", Module: "B-MAT-100"}, old, cur)

	assert.Equal(t, "Subject update !", msg.Title)
	assert.Equal(t, ColorGreen, msg.Color)
	assert.False(t, msg.Timestamp.IsZero())

	values := map[string]string{}
	for _, f := range msg.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "Math", values["Project:"])
	assert.Equal(t, "B-MAT-100", values["Module:"])
	assert.Equal(t, "File size has been decreased by **50**\n**Old:** 150\n**New:** 100", values["File size:"])
	assert.Equal(t, "**Old:** 2024-01-01 08:00:00\n**New:** 2024-01-02 09:30:00", values["Modification Time:"])
	assert.Equal(t, "jane.doe", values["Modifier:"])
}

func TestSizeDelta(t *testing.T) {
	assert.Equal(t, "File size has been increased by **50**\n**Old:** 100\n**New:** 150", sizeDelta(100, 150))
	assert.Equal(t, "File size has been increased by **0**\n**Old:** 7\n**New:** 7", sizeDelta(7, 7))
}

func TestOtherMessages(t *testing.T) {
	p := Project{Title: "Math"}
	f := snapshot.FileRecord{Title: "notes.txt", Size: 12}

	nf := NewFileMessage(p, f)
	assert.Equal(t, "New file !", nf.Title)
	assert.Equal(t, "-", nf.Fields[1].Value)

	files := make([]snapshot.FileRecord, 12)
	for i := range files {
		files[i] = snapshot.FileRecord{Title: "f", Size: uint64(i)}
	}
	np := NewProjectMessage(p, files)
	assert.Equal(t, 11, strings.Count(np.Description, "\n"))
	assert.Contains(t, np.Description, "and 2 more")

	dm := DiffMessage(p, f, "@@ -1 +1 @@\n-a\n+b\n")
	assert.True(t, strings.HasPrefix(dm.Description, "```diff\n@@"))
	assert.True(t, strings.HasSuffix(dm.Description, "```"))

	em := ErrorMessage(assert.AnError)
	assert.Equal(t, ColorRed, em.Color)
	assert.Equal(t, assert.AnError.Error(), em.Description)
}
