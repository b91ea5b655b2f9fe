// internal/content/compression.go
package content

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
	// File extensions to skip compression for
	SkipExtensions []string
}

// DefaultCompressionOptions skips formats that are already compressed,
// which covers most subject documents.
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
		SkipExtensions: []string{
			".zip", ".gz", ".tgz", ".zst", ".xz", ".bz2", ".7z",
			".png", ".jpg", ".jpeg", ".gif", ".webp",
			".mp3", ".mp4", ".avi", ".mkv",
			".pdf", ".docx", ".xlsx", ".pptx",
		},
	}
}

// compressionManager pools zstd encoders and decoders
type compressionManager struct {
	opts CompressionOptions
	skip map[string]bool

	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Validate the options once so pool constructors cannot fail later.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test encoder: %w", err)
	}
	enc.Close()

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test decoder: %w", err)
	}
	dec.Close()

	cm := &compressionManager{
		opts: opts,
		skip: make(map[string]bool, len(opts.SkipExtensions)),
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}
	for _, ext := range opts.SkipExtensions {
		cm.skip[strings.ToLower(ext)] = true
	}
	return cm, nil
}

// shouldCompress determines if content should be compressed
func (cm *compressionManager) shouldCompress(name string, size int) bool {
	if size < cm.opts.MinSize {
		return false
	}
	return !cm.skip[strings.ToLower(filepath.Ext(name))]
}

// compress returns the bytes to write and whether they are compressed.
func (cm *compressionManager) compress(name string, content []byte) ([]byte, bool, error) {
	if !cm.shouldCompress(name, len(content)) {
		return content, false, nil
	}

	enc := cm.encoders.Get().(*zstd.Encoder)
	defer cm.encoders.Put(enc)

	return enc.EncodeAll(content, make([]byte, 0, len(content)/2)), true, nil
}

// decompress decompresses content
func (cm *compressionManager) decompress(content []byte) ([]byte, error) {
	if len(content) < len(zstdMagic) || !bytes.Equal(content[:len(zstdMagic)], zstdMagic) {
		return content, nil
	}

	dec := cm.decoders.Get().(*zstd.Decoder)
	defer cm.decoders.Put(dec)

	return dec.DecodeAll(content, nil)
}

// close releases pooled decoders; encoders hold no goroutines.
func (cm *compressionManager) close() {
	cm.decoders.New = nil
	for {
		dec, ok := cm.decoders.Get().(*zstd.Decoder)
		if !ok || dec == nil {
			return
		}
		dec.Close()
	}
}
