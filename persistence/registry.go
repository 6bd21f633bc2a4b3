package persistence

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector
// for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

// Opener is a custom provider factory.
type Opener = func(dsn string, opts *Options) (BlobStore, error)

var (
	registryMu sync.RWMutex
	providers  = make(map[string]any)
)

// Register adds a storage provider to the registry. Provider is either a
// DialectorOpener (for the shared GORM key/value table) or an Opener.
func Register(name string, provider any) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = provider
}

// Open creates a blob store from a registered provider name.
func Open(name, dsn string, opts *Options) (BlobStore, error) {
	registryMu.RLock()
	provider, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("persistence: unknown storage provider %q", name)
	}
	if opts == nil {
		opts = &Options{}
	}

	switch p := provider.(type) {
	case DialectorOpener:
		db, err := gorm.Open(p(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return NewGormStore(db)
	case Opener:
		return p(dsn, opts)
	}

	return nil, fmt.Errorf("persistence: provider %q registered with incompatible type (expected DialectorOpener or Opener)", name)
}

// OpenDB opens the raw GORM handle for a database provider, for callers
// that keep additional tables (the audit store) next to the blobs.
func OpenDB(name, dsn string) (*gorm.DB, error) {
	registryMu.RLock()
	provider, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("persistence: unknown storage provider %q", name)
	}
	opener, ok := provider.(DialectorOpener)
	if !ok {
		return nil, fmt.Errorf("persistence: provider %q is not database-backed", name)
	}
	return gorm.Open(opener(dsn), &gorm.Config{})
}
