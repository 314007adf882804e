package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"tutor-app-backend/internal/model"
)

// ErrUnavailable wraps persistence I/O failures so callers can map them to a
// "try again later" response instead of a generic internal error.
var ErrUnavailable = errors.New("store unavailable")

// MutateFunc edits the document in place. Returning an error aborts the
// mutation; the persisted document is left untouched.
type MutateFunc func(*model.Document) error

// DocumentStore is the contract the services program against: a snapshot
// read and a serialized read-modify-write. *Store implements it; tests use
// in-memory fakes.
type DocumentStore interface {
	Read(ctx context.Context) (model.Document, error)
	Mutate(ctx context.Context, fn MutateFunc) (model.Document, error)
}

type job struct {
	ctx  context.Context
	fn   MutateFunc
	errc chan error
	out  chan model.Document
}

// Store owns the single persisted JSON document. Mutate calls are executed by
// one worker goroutine consuming a job channel, so the n-th mutation always
// observes the result of the (n-1)-th even when callers submit concurrently.
// A mutation is read-modify-write against the in-memory document followed by
// a flush to disk; none of that interleaves with another mutation.
type Store struct {
	path string

	jobs chan job
	wg   sync.WaitGroup

	closeOnce sync.Once

	mu  sync.RWMutex
	doc model.Document
}

// New loads the document at path, seeding it with empty sections when the
// file does not exist yet. Older documents are migrated on load.
func New(path string) (*Store, error) {
	s := &Store{
		path: path,
		jobs: make(chan job, 64),
	}

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	s.doc = doc

	s.wg.Add(1)
	go s.worker()

	return s, nil
}

func (s *Store) load() (model.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := model.SeedDocument()
		if err := s.flush(doc); err != nil {
			return model.Document{}, err
		}
		log.Printf("store: seeded new document at %s", s.path)
		return doc, nil
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Document{}, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, s.path, err)
	}
	doc.Migrate()
	return doc, nil
}

// flush writes the document via a temp file and rename so a crash mid-write
// never leaves a truncated store behind.
func (s *Store) flush(doc model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		doc, err := s.apply(j.ctx, j.fn)
		if err != nil {
			j.errc <- err
			continue
		}
		j.out <- doc
		j.errc <- nil
	}
}

func (s *Store) apply(ctx context.Context, fn MutateFunc) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}

	// Edit a deep copy; swap in only after both fn and the flush succeed.
	next, err := copyDocument(s.doc)
	if err != nil {
		return model.Document{}, err
	}

	if err := fn(&next); err != nil {
		return model.Document{}, err
	}
	if err := s.flush(next); err != nil {
		return model.Document{}, err
	}

	s.mu.Lock()
	s.doc = next
	s.mu.Unlock()

	return copyDocument(next)
}

// Mutate runs fn against the current document under the write serializer and
// returns a copy of the resulting document. Callers queued behind an
// in-flight mutation block until their turn.
func (s *Store) Mutate(ctx context.Context, fn MutateFunc) (model.Document, error) {
	errc := make(chan error, 1)
	out := make(chan model.Document, 1)

	select {
	case s.jobs <- job{ctx: ctx, fn: fn, errc: errc, out: out}:
	case <-ctx.Done():
		return model.Document{}, ctx.Err()
	}

	if err := <-errc; err != nil {
		return model.Document{}, err
	}
	return <-out, nil
}

// Read returns a copy of the current document. Reads do not queue behind
// writers; they observe the most recently applied mutation.
func (s *Store) Read(ctx context.Context) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDocument(s.doc)
}

// Close stops accepting mutations and waits for queued ones to finish.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

// copyDocument round-trips through JSON. The document is small (a flat
// per-entity layout, not per-tenant shards) and this keeps copy semantics in
// lockstep with the persisted encoding.
func copyDocument(doc model.Document) (model.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: copy encode: %v", ErrUnavailable, err)
	}
	var out model.Document
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Document{}, fmt.Errorf("%w: copy decode: %v", ErrUnavailable, err)
	}
	out.Migrate()
	return out, nil
}
