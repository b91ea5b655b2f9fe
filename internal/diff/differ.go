package diff

import (
	"fmt"
	"unicode/utf8"
)

// InlineLimit is the payload length, in characters, from which a diff is
// sent as an attachment instead of inside the message.
const InlineLimit = 2000

type SizeClass int

const (
	Inline SizeClass = iota
	Attachment
)

func (c SizeClass) String() string {
	if c == Attachment {
		return "attachment"
	}
	return "inline"
}

// Classify picks how a diff payload is delivered.
func Classify(payload string) SizeClass {
	if utf8.RuneCountInString(payload) >= InlineLimit {
		return Attachment
	}
	return Inline
}

// Ref names one version of a file: its title (used to pick the extractor)
// and the handle its bytes are stored under.
type Ref struct {
	Name       string
	ContentRef string
}

// Loader resolves content handles to bytes.
type Loader interface {
	Get(ref string) ([]byte, error)
}

// Result is the outcome of comparing two versions. When Comparable is false
// Identical is meaningless and the caller falls back to metadata only.
type Result struct {
	Comparable bool
	// Identical is true when the texts match after line normalization
	// (CRLF to LF, trailing whitespace dropped), not byte for byte.
	Identical bool
	Payload   string
	SizeClass SizeClass
	Stats     Stats
	Err       error
}

// Differ extracts text from two file versions and diffs it.
type Differ struct {
	engine    *Engine
	extractor *Extractor
	loader    Loader
}

func NewDiffer(loader Loader, contextLines int) *Differ {
	return &Differ{
		engine:    NewEngine(contextLines),
		extractor: NewExtractor(),
		loader:    loader,
	}
}

// Diff loads both versions through the loader and compares them.
func (d *Differ) Diff(oldRef, newRef Ref) Result {
	if d.loader == nil {
		return Result{Err: fmt.Errorf("%w: no content loader", ErrNotExtractable)}
	}
	if oldRef.ContentRef == "" || newRef.ContentRef == "" {
		return Result{Err: fmt.Errorf("%w: content not downloaded", ErrNotExtractable)}
	}
	if !d.extractor.Supports(oldRef.Name) || !d.extractor.Supports(newRef.Name) {
		return Result{Err: fmt.Errorf("%w: %s", ErrNotExtractable, newRef.Name)}
	}

	oldData, err := d.loader.Get(oldRef.ContentRef)
	if err != nil {
		return Result{Err: fmt.Errorf("loading previous version: %w", err)}
	}
	newData, err := d.loader.Get(newRef.ContentRef)
	if err != nil {
		return Result{Err: fmt.Errorf("loading new version: %w", err)}
	}
	return d.DiffBytes(oldRef.Name, oldData, newRef.Name, newData)
}

// DiffBytes compares two payloads already in memory.
func (d *Differ) DiffBytes(oldName string, oldData []byte, newName string, newData []byte) Result {
	oldText, err := d.extractor.ExtractText(oldName, oldData)
	if err != nil {
		return Result{Err: err}
	}
	newText, err := d.extractor.ExtractText(newName, newData)
	if err != nil {
		return Result{Err: err}
	}

	patch := d.engine.Diff(oldText, newText)
	payload := patch.Format()
	return Result{
		Comparable: true,
		Identical:  payload == "",
		Payload:    payload,
		SizeClass:  Classify(payload),
		Stats:      patch.Stats,
	}
}
