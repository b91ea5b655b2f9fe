// internal/change/event.go
package change

import (
	"intrawatch/internal/snapshot"
)

// Kind tags a change event.
type Kind int

const (
	NewProject Kind = iota + 1
	NewFile
	ModifiedFile
)

func (k Kind) String() string {
	switch k {
	case NewProject:
		return "new_project"
	case NewFile:
		return "new_file"
	case ModifiedFile:
		return "modified_file"
	}
	return "unknown"
}

// Event is a classified difference between live and snapshotted state.
// Events live for one cycle and are never persisted.
//
//   - NewProject: Project holds every fetched file.
//   - NewFile: New holds the file.
//   - ModifiedFile: Old is the snapshotted record, New the fetched one.
type Event struct {
	Kind       Kind
	ProjectKey string
	Project    *snapshot.ProjectSnapshot
	Old        snapshot.FileRecord
	New        snapshot.FileRecord
}

// Apply folds an event into a working copy of the snapshot.
func Apply(s *snapshot.Snapshot, ev Event) {
	switch ev.Kind {
	case NewProject:
		p := *ev.Project
		p.Key = ev.ProjectKey
		p.Files = append([]snapshot.FileRecord(nil), ev.Project.Files...)
		s.Put(&p)

	case NewFile:
		p := projectFor(s, ev.ProjectKey)
		p.Files = append(p.Files, ev.New)

	case ModifiedFile:
		p := projectFor(s, ev.ProjectKey)
		rec, ok := p.File(ev.New.Title)
		if !ok {
			p.Files = append(p.Files, ev.New)
			return
		}
		rec.Size = ev.New.Size
		rec.CreatedAt = ev.New.CreatedAt
		rec.ModifiedAt = ev.New.ModifiedAt
		if ev.New.Modifier != "" {
			rec.Modifier = ev.New.Modifier
		}
		if ev.New.RemotePath != "" {
			rec.RemotePath = ev.New.RemotePath
		}
		if ev.New.ContentRef != "" {
			rec.ContentRef = ev.New.ContentRef
		}
	}
}

func projectFor(s *snapshot.Snapshot, key string) *snapshot.ProjectSnapshot {
	if p, ok := s.Project(key); ok {
		return p
	}
	p := &snapshot.ProjectSnapshot{Key: key, Title: key}
	s.Put(p)
	return p
}
