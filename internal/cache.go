package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnolang/matchall/internal/types"
)

const (
	cacheFileName = "matchall_cache.gob"
	defaultMaxAge = 24 * time.Hour
)

type CacheEntry struct {
	InputHash   string
	OutputHash  string
	Fingerprint string
	Output      string
	Issues      []tt.Issue
	Expanded    int
	Template    bool

	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache remembers the result of processing a file so that unchanged
// templates whose output is still on disk are not regenerated.
type Cache struct {
	CacheDir    string
	entries     map[string]CacheEntry
	mutex       sync.RWMutex
	maxAge      time.Duration
	fingerprint string
}

func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir: cacheDir,
		entries:  make(map[string]CacheEntry),
		maxAge:   defaultMaxAge,
	}

	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	return cache, nil
}

func (c *Cache) path() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}

	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}

	return nil
}

// SetFingerprint ties entries to the engine configuration that produced
// them. Entries written under another fingerprint are treated as stale.
func (c *Cache) SetFingerprint(fingerprint string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.fingerprint = fingerprint
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

// Set records the result of processing content. The generated content, if
// any, must be the one that ends up on disk at result.Output.
func (c *Cache) Set(filename string, content []byte, result *Result) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	entry := CacheEntry{
		InputHash:    hashBytes(content),
		Fingerprint:  c.fingerprint,
		Output:       result.Output,
		Issues:       result.Issues,
		Expanded:     result.Expanded,
		Template:     result.Template,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if result.Content != nil {
		entry.OutputHash = hashBytes(result.Content)
	}
	c.entries[filename] = entry

	return c.save()
}

// Get returns the entry for filename when content is unchanged and the
// generated file on disk still matches what was produced.
func (c *Cache) Get(filename string, content []byte) (CacheEntry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[filename]
	if !exists {
		return CacheEntry{}, false
	}

	if c.isEntryInvalid(entry, content) {
		delete(c.entries, filename)
		return CacheEntry{}, false
	}

	entry.LastAccessed = time.Now()
	c.entries[filename] = entry

	return entry, true
}

func (c *Cache) isEntryInvalid(entry CacheEntry, content []byte) bool {
	// too old
	if time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	if entry.Fingerprint != c.fingerprint {
		return true
	}
	if entry.InputHash != hashBytes(content) {
		return true
	}
	if entry.OutputHash == "" || entry.Output == "" {
		return false
	}

	onDisk, err := os.ReadFile(entry.Output)
	if err != nil {
		return true
	}
	return hashBytes(onDisk) != entry.OutputHash
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	_ = c.save() // best effort, the in-memory state is already cleared
}

func hashBytes(b []byte) string {
	return fmt.Sprintf("%x", md5.Sum(b))
}
