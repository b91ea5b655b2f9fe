package snapshot

import (
	"context"
	"encoding/json"

	"intrawatch/internal/errors"
)

// Store loads and atomically replaces the persisted snapshot.
type Store interface {
	// Load returns the persisted snapshot, or an empty one when nothing has
	// been committed yet. A persisted form that cannot be parsed yields a
	// Corrupt error.
	Load(ctx context.Context) (*Snapshot, error)
	// Commit replaces the persisted snapshot. A crash during Commit leaves
	// either the previous or the new snapshot readable.
	Commit(ctx context.Context, s *Snapshot) error
}

// document is the persisted layout: { "<key>": { "title", "files": [...] } }.
type document map[string]*ProjectSnapshot

func encode(s *Snapshot) ([]byte, error) {
	doc := make(document, len(s.Projects))
	for k, p := range s.Projects {
		doc[NormalizeKey(k)] = p
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decode(data []byte) (*Snapshot, error) {
	s := New()
	if len(data) == 0 {
		return s, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Corrupt("decoding snapshot", err)
	}
	for k, p := range doc {
		if p == nil {
			continue
		}
		p.Key = k
		s.Put(p)
	}
	return s, nil
}
