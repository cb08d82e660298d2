package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultDataDir is where the file backend keeps its snapshot.
const DefaultDataDir = "~/.local/share/venue-events"

const snapshotName = "events.json"

const (
	lockSuffix = ".lock"
	// lockWait bounds how long a writer waits for another process's write.
	lockWait     = 5 * time.Second
	lockPoll     = 10 * time.Millisecond
	staleLockAge = 30 * time.Second
)

// snapshot is the on-disk layout of the file backend.
type snapshot struct {
	UpdatedAt string               `json:"updated_at"`
	Documents map[string]*Document `json:"documents"`
}

// FileIndex persists documents as a single JSON snapshot in a data directory.
// Every upsert rewrites the snapshot atomically under a lock file after
// re-reading it, so processes sharing a directory never overwrite each
// other's documents; reads pick up snapshots written by other processes.
type FileIndex struct {
	mu      sync.RWMutex
	dataDir string
	docs    map[string]*Document
	modTime time.Time
	now     func() time.Time
}

var _ Index = (*FileIndex)(nil)

// OpenFile opens (or creates) the snapshot under dataDir.
func OpenFile(dataDir string) (*FileIndex, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	f := &FileIndex{
		dataDir: dataDir,
		docs:    make(map[string]*Document),
		now:     time.Now,
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the snapshot file path.
func (f *FileIndex) Path() string {
	return filepath.Join(f.dataDir, snapshotName)
}

// load replaces the in-memory documents with the snapshot on disk. Caller holds mu.
func (f *FileIndex) load() error {
	info, err := os.Stat(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading snapshot: %w", err)
	}

	data, err := os.ReadFile(f.Path())
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}
	docs := make(map[string]*Document, len(snap.Documents))
	for url, d := range snap.Documents {
		if d == nil {
			continue
		}
		docs[url] = d
	}
	f.docs = docs
	f.modTime = info.ModTime()
	return nil
}

// refresh reloads the snapshot if it changed since it was last read or written.
func (f *FileIndex) refresh() error {
	info, err := os.Stat(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading snapshot: %w", err)
	}

	f.mu.RLock()
	current := info.ModTime().Equal(f.modTime)
	f.mu.RUnlock()
	if current {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// lock takes the cross-process write lock beside the snapshot. A lock left
// behind by a crashed writer is broken once it is staleLockAge old.
func (f *FileIndex) lock(ctx context.Context) (func(), error) {
	path := f.Path() + lockSuffix
	deadline := time.Now().Add(lockWait)

	for {
		lf, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(lf, "%d\n", os.Getpid())
			lf.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("snapshot is locked by another writer: %s", path)
		}

		timer := time.NewTimer(lockPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// save writes the snapshot through a temp file and rename. Caller holds mu.
func (f *FileIndex) save() error {
	snap := snapshot{
		UpdatedAt: f.now().UTC().Format(time.RFC3339),
		Documents: f.docs,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(f.dataDir, ".events-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	if info, err := os.Stat(f.Path()); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}

func (f *FileIndex) Upsert(ctx context.Context, doc Document) error {
	if doc.URL == "" {
		return fmt.Errorf("upsert: document has no url")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// Another process may have written since our last read.
	if err := f.load(); err != nil {
		return err
	}

	prev, existed := f.docs[doc.URL]
	stored := doc
	f.docs[doc.URL] = &stored

	if err := f.save(); err != nil {
		if existed {
			f.docs[doc.URL] = prev
		} else {
			delete(f.docs, doc.URL)
		}
		return err
	}
	return nil
}

func (f *FileIndex) Search(ctx context.Context, q Query) ([]Document, error) {
	if err := f.refresh(); err != nil {
		return nil, err
	}
	return filterDocuments(f.snapshotDocs(), q), nil
}

func (f *FileIndex) Cities(ctx context.Context) ([]string, error) {
	if err := f.refresh(); err != nil {
		return nil, err
	}
	return distinctCities(f.snapshotDocs()), nil
}

// Ping checks that the data directory is still writable.
func (f *FileIndex) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dataDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, f.dataDir)
	}
	return nil
}

func (f *FileIndex) Close() error {
	return nil
}

func (f *FileIndex) snapshotDocs() []Document {
	f.mu.RLock()
	defer f.mu.RUnlock()
	docs := make([]Document, 0, len(f.docs))
	for _, d := range f.docs {
		docs = append(docs, *d)
	}
	return docs
}
