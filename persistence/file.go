package persistence

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

func init() {
	Register("file", func(dsn string, opts *Options) (BlobStore, error) {
		return NewFileStore(dsn, opts.SealKey)
	})
}

// FileStore persists blobs as a single JSON document on disk, optionally
// sealed with AES-256-GCM so secrets are not readable in place. Content
// that fails to load (missing file, bad JSON, failed unseal) is treated as
// an empty store rather than an error: persisted state is a cache of
// enrollments and sessions, and a corrupt cache must not lock the
// authentication core out.
type FileStore struct {
	mu      sync.Mutex
	path    string
	sealKey []byte
	blobs   map[string][]byte
}

// NewFileStore opens (or initializes) the store at path. A non-empty
// sealKey must be exactly 32 bytes.
func NewFileStore(path string, sealKey []byte) (*FileStore, error) {
	if len(sealKey) != 0 && len(sealKey) != 32 {
		return nil, errors.New("persistence: seal key must be 32 bytes")
	}

	s := &FileStore{path: path, sealKey: sealKey}
	s.load()
	return s, nil
}

func (s *FileStore) load() {
	s.blobs = make(map[string][]byte)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	if len(s.sealKey) > 0 {
		raw, err = s.unseal(raw)
		if err != nil {
			return
		}
	}

	var blobs map[string][]byte
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return
	}
	s.blobs = blobs
}

func (s *FileStore) flush() error {
	raw, err := json.Marshal(s.blobs)
	if err != nil {
		return err
	}
	if len(s.sealKey) > 0 {
		raw, err = s.seal(raw)
		if err != nil {
			return err
		}
	}

	// Write-then-rename keeps a crash from leaving a half-written store.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *FileStore) unseal(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("persistence: sealed store too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.blobs[key] = stored
	return s.flush()
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return nil
	}
	delete(s.blobs, key)
	return s.flush()
}

func (s *FileStore) Close() error {
	return nil
}
