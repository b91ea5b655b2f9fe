// internal/content/safe.go
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidHash     = errors.New("invalid content hash")
)

// ContentMeta stores metadata about stored content
type ContentMeta struct {
	Hash       string    `json:"hash"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Safe keeps downloaded file versions, addressed by the sha256 of their
// bytes. Payloads live on disk, metadata in badger.
type Safe struct {
	root       string
	db         *badger.DB
	cache      *lru.Cache[string, []byte]
	compressor *compressionManager
}

// Options configures Safe behavior
type Options struct {
	Root        string // Root directory path
	CacheSize   int    // Number of items to cache
	Compression CompressionOptions
}

// New creates a new Safe instance
func New(db *badger.DB, opts Options) (*Safe, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	if opts.Compression.Level == 0 {
		opts.Compression = DefaultCompressionOptions()
	}
	cm, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Safe{
		root:       opts.Root,
		db:         db,
		cache:      cache,
		compressor: cm,
	}, nil
}

// Put reads a payload to the end and stores it.
func (s *Safe) Put(name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return s.Store(name, data)
}

// Store saves content and returns its hash
func (s *Safe) Store(name string, content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}
	hash := s.hashContent(content)

	exists, err := s.Exists(hash)
	if err != nil {
		return "", fmt.Errorf("checking existence: %w", err)
	}
	if exists {
		return hash, nil
	}

	stored, compressed, err := s.compressor.compress(name, content)
	if err != nil {
		return "", fmt.Errorf("compressing %s: %w", name, err)
	}

	contentPath := s.contentPath(hash)
	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		return "", fmt.Errorf("creating content directory: %w", err)
	}
	if err := os.WriteFile(contentPath, stored, 0644); err != nil {
		return "", fmt.Errorf("writing content file: %w", err)
	}

	meta := ContentMeta{
		Hash:       hash,
		Name:       name,
		Size:       int64(len(content)),
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	if err := s.storeMeta(meta); err != nil {
		os.Remove(contentPath)
		return "", fmt.Errorf("storing metadata: %w", err)
	}

	s.cache.Add(hash, content)
	return hash, nil
}

// Get retrieves content by hash
func (s *Safe) Get(hash string) ([]byte, error) {
	if !s.isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, fmt.Errorf("getting metadata: %w", err)
	}

	content, err := os.ReadFile(s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if meta.Compressed {
		content, err = s.compressor.decompress(content)
		if err != nil {
			return nil, fmt.Errorf("decompressing content: %w", err)
		}
	}

	if s.hashContent(content) != hash {
		return nil, fmt.Errorf("content hash mismatch")
	}

	s.cache.Add(hash, content)
	return content, nil
}

// Meta returns what is known about a stored payload.
func (s *Safe) Meta(hash string) (ContentMeta, error) {
	if !s.isValidHash(hash) {
		return ContentMeta{}, ErrInvalidHash
	}
	return s.getMeta(hash)
}

// Exists checks if content exists
func (s *Safe) Exists(hash string) (bool, error) {
	if !s.isValidHash(hash) {
		return false, ErrInvalidHash
	}
	if s.cache.Contains(hash) {
		return true, nil
	}

	_, err := s.getMeta(hash)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Safe) Close() {
	s.compressor.close()
}

func (s *Safe) hashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func (s *Safe) isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

func metaKey(hash string) []byte {
	return []byte(fmt.Sprintf("content:%s", hash))
}

func (s *Safe) storeMeta(meta ContentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(meta.Hash), data)
	})
}

func (s *Safe) getMeta(hash string) (ContentMeta, error) {
	var meta ContentMeta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(hash))
		if err == badger.ErrKeyNotFound {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	return meta, err
}
