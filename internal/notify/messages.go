package notify

import (
	"fmt"
	"time"

	"intrawatch/internal/snapshot"
)

// Project identifies the project a message is about.
type Project struct {
	Title  string
	Module string
}

func ModifiedMessage(p Project, old, cur snapshot.FileRecord) *Message {
	fields := []Field{
		{Name: "Project:", Value: p.Title},
		{Name: "Module:", Value: orDash(p.Module)},
		{Name: "File:", Value: cur.Title},
		{Name: "File size:", Value: sizeDelta(old.Size, cur.Size)},
		{Name: "Creation Time:", Value: fmt.Sprintf("**Old:** %s\n**New:** %s", formatTime(old.CreatedAt), formatTime(cur.CreatedAt))},
		{Name: "Modification Time:", Value: fmt.Sprintf("**Old:** %s\n**New:** %s", formatTime(old.ModifiedAt), formatTime(cur.ModifiedAt))},
	}
	if cur.Modifier != "" {
		fields = append(fields, Field{Name: "Modifier:", Value: cur.Modifier})
	}
	return &Message{
		Title:     "Subject update !",
		Fields:    fields,
		Color:     ColorGreen,
		Timestamp: time.Now(),
	}
}

func NewFileMessage(p Project, f snapshot.FileRecord) *Message {
	return &Message{
		Title: "New file !",
		Fields: []Field{
			{Name: "Project:", Value: p.Title},
			{Name: "Module:", Value: orDash(p.Module)},
			{Name: "File:", Value: f.Title},
			{Name: "File size:", Value: fmt.Sprintf("%d", f.Size)},
			{Name: "Creation Time:", Value: formatTime(f.CreatedAt)},
		},
		Color:     ColorBlue,
		Timestamp: time.Now(),
	}
}

func NewProjectMessage(p Project, files []snapshot.FileRecord) *Message {
	var list string
	for i, f := range files {
		if i == 10 {
			list += fmt.Sprintf("… and %d more\n", len(files)-i)
			break
		}
		list += fmt.Sprintf("%s (%d)\n", f.Title, f.Size)
	}
	return &Message{
		Title:       "New project !",
		Description: list,
		Fields: []Field{
			{Name: "Project:", Value: p.Title},
			{Name: "Module:", Value: orDash(p.Module)},
			{Name: "Files:", Value: fmt.Sprintf("%d", len(files))},
		},
		Color:     ColorBlue,
		Timestamp: time.Now(),
	}
}

// DiffMessage wraps a small diff in a code block.
func DiffMessage(p Project, f snapshot.FileRecord, payload string) *Message {
	return &Message{
		Title:       fmt.Sprintf("Changes in %s", f.Title),
		Description: "```diff\n" + payload + "```",
		Fields:      []Field{{Name: "Project:", Value: p.Title}},
		Color:       ColorOrange,
		Timestamp:   time.Now(),
	}
}

func ErrorMessage(err error) *Message {
	return &Message{
		Title:       "Error",
		Description: err.Error(),
		Color:       ColorRed,
		Timestamp:   time.Now(),
	}
}

func sizeDelta(old, cur uint64) string {
	verb := "increased"
	delta := cur - old
	if cur < old {
		verb = "decreased"
		delta = old - cur
	}
	return fmt.Sprintf("File size has been %s by **%d**\n**Old:** %d\n**New:** %d", verb, delta, old, cur)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
