package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/query"
	"github.com/cuemby/objstore/pkg/readversion"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/security"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// autosaveDelay is the coalesced debounce window a scheduled autosave waits
// before running (§4.I).
const autosaveDelay = 10 * time.Millisecond

// Config bundles a Session's fixed collaborators. The container (§4.L) owns
// one of each and hands out a Config per NewSession call; every field is
// shared read-only across every session built from it.
type Config struct {
	Driver   *txn.Driver
	Resolver *directory.Resolver
	Registry *schema.Registry
	Security security.Delegate
	Query    *query.Executor
}

// Session is a unit-of-work (§4.I): a change-set of pending inserts and
// deletes, a Save algorithm that commits the whole change-set atomically,
// and an optional debounced autosave. A session owns its change-set, its
// own read-version cache, and an optional autosave-error callback; its
// lifetime is one unit of work. Sessions must not be shared across
// goroutines without external serialization (§5).
type Session struct {
	cfg   Config
	cache *readversion.Cache

	mu       sync.Mutex
	inserts  map[changeKey]pendingRecord
	deletes  map[changeKey]pendingRecord
	isSaving bool

	autosaveEnabled   bool
	autosaveScheduled bool
	autosaveTimer     *time.Timer
	onAutosaveError   func(error)
}

// New builds a Session against cfg. When autosave is true, every mutation
// schedules a coalesced debounced Save; onAutosaveError (which may be nil)
// is invoked if that save fails, and autosave is then disabled for the rest
// of the session's lifetime.
func New(cfg Config, autosave bool, onAutosaveError func(error)) *Session {
	if cfg.Security == nil {
		cfg.Security = security.AllowAll{}
	}
	return &Session{
		cfg:             cfg,
		cache:           &readversion.Cache{},
		inserts:         make(map[changeKey]pendingRecord),
		deletes:         make(map[changeKey]pendingRecord),
		autosaveEnabled: autosave,
		onAutosaveError: onAutosaveError,
	}
}

// Insert upserts record into the pending-insert change-set, removing any
// pending delete filed under the same (type, id).
func (s *Session) Insert(record any) error {
	td, id, err := s.describe(record)
	if err != nil {
		return err
	}
	key, err := keyFor(td.Name, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.deletes, key)
	s.inserts[key] = pendingRecord{typeName: td.Name, id: id, value: record}
	s.mu.Unlock()

	s.scheduleAutosave()
	return nil
}

// Delete stages record for removal. If the same (type, id) is still a
// pending insert, the two cancel out and neither reaches the store.
func (s *Session) Delete(record any) error {
	td, id, err := s.describe(record)
	if err != nil {
		return err
	}
	key, err := keyFor(td.Name, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, wasPendingInsert := s.inserts[key]; wasPendingInsert {
		delete(s.inserts, key)
	} else {
		s.deletes[key] = pendingRecord{typeName: td.Name, id: id, value: record}
	}
	s.mu.Unlock()

	s.scheduleAutosave()
	return nil
}

// Rollback drops the entire pending change-set and cancels any scheduled
// autosave, without touching the store.
func (s *Session) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = make(map[changeKey]pendingRecord)
	s.deletes = make(map[changeKey]pendingRecord)
	s.autosaveScheduled = false
	if s.autosaveTimer != nil {
		s.autosaveTimer.Stop()
	}
}

// HasChanges reports whether the change-set holds any pending insert or
// delete.
func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserts) > 0 || len(s.deletes) > 0
}

// PerformAndSave invokes fn, then Save, surfacing whichever fails first.
func (s *Session) PerformAndSave(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	return s.Save(ctx)
}

// describe resolves record's declared type and primary-key tuple through
// the registry.
func (s *Session) describe(record any) (schema.TypeDescriptor, tuple.Tuple, error) {
	td, ok := s.cfg.Registry.TypeByInstance(record)
	if !ok {
		return schema.TypeDescriptor{}, nil, fmt.Errorf("session: %w", ErrUnregisteredType)
	}
	id, err := td.IDOf(record)
	if err != nil {
		return schema.TypeDescriptor{}, nil, fmt.Errorf("session: extracting id for %s: %w", td.Name, err)
	}
	return td, id, nil
}
