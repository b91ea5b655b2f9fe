package change

import (
	"testing"
	"time"

	"intrawatch/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func file(title string, size uint64, ctime, mtime int64) snapshot.FileRecord {
	return snapshot.FileRecord{
		Title:      title,
		Size:       size,
		CreatedAt:  time.Unix(ctime, 0).UTC(),
		ModifiedAt: time.Unix(mtime, 0).UTC(),
	}
}

func project(key string, files ...snapshot.FileRecord) *snapshot.ProjectSnapshot {
	return &snapshot.ProjectSnapshot{Key: key, Title: key, Files: files}
}

func TestDetectNewProject(t *testing.T) {
	d := NewDetector(nil)
	fetched := []snapshot.FileRecord{file("subject.pdf", 100, 1, 1), file("bootstrap.pdf", 20, 1, 1)}

	events := d.Detect("Math", fetched, nil)

	require.Len(t, events, 1)
	assert.Equal(t, NewProject, events[0].Kind)
	assert.Equal(t, "Math", events[0].ProjectKey)
	assert.Equal(t, fetched, events[0].Project.Files)
}

func TestDetectNoChanges(t *testing.T) {
	d := NewDetector(nil)
	prior := project("Math", file("subject.pdf", 100, 1, 1), file("notes.txt", 5, 2, 3))

	events := d.Detect("Math", prior.Files, prior)
	assert.Empty(t, events)
}

func TestDetectNewFile(t *testing.T) {
	d := NewDetector(nil)
	prior := project("Math", file("subject.pdf", 100, 1, 1))
	added := file("tests.zip", 10, 4, 4)

	events := d.Detect("Math", []snapshot.FileRecord{prior.Files[0], added}, prior)

	require.Len(t, events, 1)
	assert.Equal(t, NewFile, events[0].Kind)
	assert.Equal(t, added, events[0].New)
}

func TestDetectModifiedSingleField(t *testing.T) {
	base := file("subject.pdf", 100, 1, 1)

	tests := []struct {
		name   string
		mutate func(*snapshot.FileRecord)
	}{
		{"size", func(f *snapshot.FileRecord) { f.Size = 150 }},
		{"ctime", func(f *snapshot.FileRecord) { f.CreatedAt = time.Unix(9, 0) }},
		{"mtime", func(f *snapshot.FileRecord) { f.ModifiedAt = time.Unix(2, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			tt.mutate(&changed)

			events := NewDetector(nil).Detect("Math", []snapshot.FileRecord{changed}, project("Math", base))

			require.Len(t, events, 1)
			assert.Equal(t, ModifiedFile, events[0].Kind)
			assert.Equal(t, base, events[0].Old)
			assert.Equal(t, changed, events[0].New)
		})
	}
}

func TestDetectIgnoresNonMetadataFields(t *testing.T) {
	base := file("subject.pdf", 100, 1, 1)
	fetched := base
	fetched.Modifier = "someone"
	fetched.RemotePath = "/elsewhere"

	events := NewDetector(nil).Detect("Math", []snapshot.FileRecord{fetched}, project("Math", base))
	assert.Empty(t, events)
}

func TestDetectKeepsFetchOrder(t *testing.T) {
	prior := project("Math", file("b", 1, 1, 1), file("a", 1, 1, 1))
	fetched := []snapshot.FileRecord{
		file("c", 1, 1, 1),
		file("b", 2, 1, 1),
		file("d", 1, 1, 1),
		file("a", 1, 1, 5),
	}

	events := NewDetector(nil).Detect("Math", fetched, prior)

	require.Len(t, events, 4)
	var titles []string
	for _, ev := range events {
		titles = append(titles, ev.New.Title)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, titles)
	assert.Equal(t, []Kind{NewFile, ModifiedFile, NewFile, ModifiedFile},
		[]Kind{events[0].Kind, events[1].Kind, events[2].Kind, events[3].Kind})
}

func TestDetectNoDeletions(t *testing.T) {
	prior := project("Math", file("gone.pdf", 1, 1, 1), file("kept.pdf", 1, 1, 1))
	events := NewDetector(nil).Detect("Math", []snapshot.FileRecord{file("kept.pdf", 1, 1, 1)}, prior)
	assert.Empty(t, events)
}

func TestDetectNormalizesTitles(t *testing.T) {
	prior := project("Math", file("part1/subject.pdf", 1, 1, 1))
	events := NewDetector(nil).Detect("Math", []snapshot.FileRecord{file("part1_subject.pdf", 1, 1, 1)}, prior)
	assert.Empty(t, events)
}

func TestDetectDuplicateTitles(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewDetector(zap.New(core))

	fetched := []snapshot.FileRecord{file("a.pdf", 1, 1, 1), file("a.pdf", 2, 2, 2)}
	events := d.Detect("Math", fetched, project("Math"))

	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].New.Size)
	assert.Equal(t, 1, logs.FilterMessage("duplicate file title in listing, keeping first").Len())
}

func TestApply(t *testing.T) {
	s := snapshot.New()

	Apply(s, Event{
		Kind:       NewProject,
		ProjectKey: "Math",
		Project:    &snapshot.ProjectSnapshot{Title: "Math", Files: []snapshot.FileRecord{file("subject.pdf", 100, 1, 1)}},
	})
	p, ok := s.Project("Math")
	require.True(t, ok)
	assert.Equal(t, []snapshot.FileRecord{file("subject.pdf", 100, 1, 1)}, p.Files)

	Apply(s, Event{Kind: NewFile, ProjectKey: "Math", New: file("extra.txt", 3, 2, 2)})
	assert.Len(t, p.Files, 2)

	updated := file("subject.pdf", 150, 1, 2)
	updated.ContentRef = "ref-2"
	old := p.Files[0]
	old.ContentRef = "ref-1"
	p.Files[0] = old
	Apply(s, Event{Kind: ModifiedFile, ProjectKey: "Math", Old: old, New: updated})

	rec, ok := p.File("subject.pdf")
	require.True(t, ok)
	assert.Equal(t, uint64(150), rec.Size)
	assert.True(t, rec.ModifiedAt.Equal(time.Unix(2, 0)))
	assert.Equal(t, "ref-2", rec.ContentRef)

	// Modified event without a content ref keeps the previous one.
	Apply(s, Event{Kind: ModifiedFile, ProjectKey: "Math", Old: *rec, New: file("subject.pdf", 160, 1, 3)})
	rec, _ = p.File("subject.pdf")
	assert.Equal(t, "ref-2", rec.ContentRef)
	assert.Equal(t, uint64(160), rec.Size)
}

func TestApplyDoesNotAliasEvent(t *testing.T) {
	s := snapshot.New()
	ev := Event{
		Kind:       NewProject,
		ProjectKey: "Math",
		Project:    &snapshot.ProjectSnapshot{Files: []snapshot.FileRecord{file("a", 1, 1, 1)}},
	}
	Apply(s, ev)
	ev.Project.Files[0].Size = 42

	p, _ := s.Project("Math")
	assert.Equal(t, uint64(1), p.Files[0].Size)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "new_project", NewProject.String())
	assert.Equal(t, "new_file", NewFile.String())
	assert.Equal(t, "modified_file", ModifiedFile.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
