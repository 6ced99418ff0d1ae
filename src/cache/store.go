package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/ulikunitz/xz"
	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cache")

// Store is the persisted, per-run map of target label to its last-known-good
// Record. It is flushed to disk atomically (write to a temp file in the same
// directory, then rename) so a crash mid-write never corrupts the store that
// was there before.
type Store struct {
	mu      sync.RWMutex
	path    string
	records map[string]*Record
	dirty   bool
}

// Open loads the store at path, or returns an empty store if it doesn't
// exist yet or fails to parse (a corrupt cache is never fatal; it just means
// everything looks stale).
func Open(path string) *Store {
	s := &Store{path: path, records: map[string]*Record{}}
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return s
	}
	r, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		log.Warningf("cache store %s is not valid xz, ignoring: %s", path, err)
		return s
	}
	dec := gob.NewDecoder(r)
	var records map[string]*Record
	if err := dec.Decode(&records); err != nil {
		log.Warningf("cache store %s could not be decoded, ignoring: %s", path, err)
		return s
	}
	s.records = records
	return s
}

// Get returns the stored record for label, or nil.
func (s *Store) Get(label string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[label]
}

// Put stores (or replaces) the record for its target label.
func (s *Store) Put(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Label] = r
	s.dirty = true
}

// Invalidate drops any stored record for label, forcing a full rebuild next time.
func (s *Store) Invalidate(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.records[label]; present {
		delete(s.records, label)
		s.dirty = true
	}
}

// Flush persists the store if it has unsaved changes, compressing with xz
// and writing atomically via a temp file plus rename.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(s.records); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := ioutil.TempFile(dir, ".kiln-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flushing cache store: %w", err)
	}
	s.dirty = false
	return nil
}
