// internal/change/detector.go
package change

import (
	"intrawatch/internal/snapshot"

	"go.uber.org/zap"
)

// Detector compares a fresh file listing with the snapshotted project. It
// never mutates the snapshot.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

// Detect returns events in the order files were fetched. With no prior
// project a single NewProject event carries every file. Files missing from
// the fetch are not reported.
func (d *Detector) Detect(projectKey string, fetched []snapshot.FileRecord, prior *snapshot.ProjectSnapshot) []Event {
	projectKey = snapshot.NormalizeKey(projectKey)
	files := d.dedupe(projectKey, fetched)

	if prior == nil {
		return []Event{{
			Kind:       NewProject,
			ProjectKey: projectKey,
			Project: &snapshot.ProjectSnapshot{
				Key:   projectKey,
				Files: files,
			},
		}}
	}

	var events []Event
	for _, f := range files {
		old, ok := prior.File(f.Title)
		if !ok {
			events = append(events, Event{Kind: NewFile, ProjectKey: projectKey, New: f})
			continue
		}
		if old.SameMetadata(f) {
			d.logger.Debug("file unchanged",
				zap.String("project", projectKey),
				zap.String("file", f.Title))
			continue
		}
		events = append(events, Event{Kind: ModifiedFile, ProjectKey: projectKey, Old: *old, New: f})
	}
	return events
}

// dedupe keeps the first record of every normalized title.
func (d *Detector) dedupe(projectKey string, fetched []snapshot.FileRecord) []snapshot.FileRecord {
	seen := make(map[string]bool, len(fetched))
	out := make([]snapshot.FileRecord, 0, len(fetched))
	for _, f := range fetched {
		key := snapshot.NormalizeKey(f.Title)
		if seen[key] {
			d.logger.Warn("duplicate file title in listing, keeping first",
				zap.String("project", projectKey),
				zap.String("file", f.Title))
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
