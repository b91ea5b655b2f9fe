// internal/snapshot/types.go
package snapshot

import (
	"sort"
	"strings"
	"time"
)

// FileRecord is the last observed metadata of one project file. Identity
// within a project is the normalized Title.
type FileRecord struct {
	Title      string    `json:"title"`
	Size       uint64    `json:"size"`
	CreatedAt  time.Time `json:"ctime"`
	ModifiedAt time.Time `json:"mtime"`
	ContentRef string    `json:"path,omitempty"`     // content safe reference, empty when not downloaded
	RemotePath string    `json:"fullpath,omitempty"` // location on the remote source
	Modifier   string    `json:"modifier,omitempty"`
}

// SameMetadata reports whether size, creation and modification time match.
func (f FileRecord) SameMetadata(other FileRecord) bool {
	return f.Size == other.Size &&
		f.CreatedAt.Equal(other.CreatedAt) &&
		f.ModifiedAt.Equal(other.ModifiedAt)
}

type ProjectSnapshot struct {
	Key    string       `json:"-"`
	Title  string       `json:"title"`
	Module string       `json:"module,omitempty"`
	Files  []FileRecord `json:"files"`
}

// File returns the record whose normalized title matches title.
func (p *ProjectSnapshot) File(title string) (*FileRecord, bool) {
	key := NormalizeKey(title)
	for i := range p.Files {
		if NormalizeKey(p.Files[i].Title) == key {
			return &p.Files[i], true
		}
	}
	return nil, false
}

// Snapshot is the full persisted state, keyed by normalized project key.
type Snapshot struct {
	Projects map[string]*ProjectSnapshot
}

func New() *Snapshot {
	return &Snapshot{Projects: make(map[string]*ProjectSnapshot)}
}

func (s *Snapshot) Empty() bool {
	return len(s.Projects) == 0
}

func (s *Snapshot) Project(key string) (*ProjectSnapshot, bool) {
	p, ok := s.Projects[NormalizeKey(key)]
	return p, ok
}

// Put stores p under its normalized key, replacing any previous entry.
func (s *Snapshot) Put(p *ProjectSnapshot) {
	p.Key = NormalizeKey(p.Key)
	s.Projects[p.Key] = p
}

// Keys returns project keys in lexical order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Projects))
	for k := range s.Projects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy, used as the driver's working copy.
func (s *Snapshot) Clone() *Snapshot {
	out := New()
	for k, p := range s.Projects {
		cp := *p
		cp.Files = append([]FileRecord(nil), p.Files...)
		out.Projects[k] = &cp
	}
	return out
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_")

// NormalizeKey is the identity contract for project keys and file titles:
// path separators become "_" and surrounding whitespace is dropped. Every
// snapshot read and write goes through it.
func NormalizeKey(s string) string {
	return strings.TrimSpace(keyReplacer.Replace(s))
}
