package profile

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Store exposes profile management for HTTP handlers and background jobs.
type Store interface {
	List() map[string]Profile
	Get(name string) (Profile, bool)
	Create(name string, params map[string]string) (Profile, error)
	Update(name string, params map[string]string) (Profile, error)
	Delete(name string) error
	Validate(name, permission string) Decision
	Toggle(name, permission string)
}

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeToggled ChangeKind = "toggled"
)

// Change describes a committed mutation. Profile is a snapshot taken after the
// mutation; it is empty apart from the name for deletions.
type Change struct {
	Kind    ChangeKind
	Profile Profile
	// Permission is set for toggles only.
	Permission string
	// Count is the number of profiles in the store after the mutation.
	Count int
	At    time.Time
}

// Observer is notified of every committed mutation. It is called while the
// store's write lock is held, so implementations must not block or call back
// into the store. The Change is shared between observers and must be treated
// as read-only.
type Observer interface {
	ProfileChanged(Change)
}

// ToggleSkipObserver is an optional Observer extension notified when a toggle
// is absorbed as a no-op.
type ToggleSkipObserver interface {
	ToggleSkipped(name, permission, reason string)
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithObserver registers o for change notifications.
func WithObserver(o Observer) Option {
	return func(s *MemoryStore) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// MemoryStore implements Store with a mutex-guarded map. Reads hand out
// copies, so nothing outside the store can reach its internal maps.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]Profile
	observers []Observer
	now       func() time.Time
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
// Seed values are normalized; a seed that fails validation is skipped and logged.
func NewMemoryStore(items []Profile, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[string]Profile, len(items)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, item := range items {
		params, err := NormalizeParameters(item.Parameters)
		if err != nil {
			log.Printf("[profile] skipping seed %q: %v", item.ProfileName, err)
			continue
		}
		s.profiles[item.ProfileName] = Profile{ProfileName: item.ProfileName, Parameters: params}
	}
	return s
}

// List returns a snapshot of every profile keyed by name.
func (s *MemoryStore) List() map[string]Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Profile, len(s.profiles))
	for name, p := range s.profiles {
		out[name] = p.Clone()
	}
	return out
}

// Get looks up a profile by name.
func (s *MemoryStore) Get(name string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// Create inserts a new profile and returns a snapshot of what was stored.
// The name check happens before value validation.
func (s *MemoryStore) Create(name string, params map[string]string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; ok {
		return Profile{}, fmt.Errorf("create %q: %w", name, ErrAlreadyExists)
	}
	normalized, err := NormalizeParameters(params)
	if err != nil {
		return Profile{}, fmt.Errorf("create %q: %w", name, err)
	}

	p := Profile{ProfileName: name, Parameters: normalized}
	s.profiles[name] = p
	s.notify(ChangeCreated, p, "")
	return p.Clone(), nil
}

// Update replaces the full parameter set of an existing profile and returns
// a snapshot of the committed state.
func (s *MemoryStore) Update(name string, params map[string]string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return Profile{}, fmt.Errorf("update %q: %w", name, ErrNotFound)
	}
	normalized, err := NormalizeParameters(params)
	if err != nil {
		return Profile{}, fmt.Errorf("update %q: %w", name, err)
	}

	p := Profile{ProfileName: name, Parameters: normalized}
	s.profiles[name] = p
	s.notify(ChangeUpdated, p, "")
	return p.Clone(), nil
}

// Delete removes a profile.
func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("delete %q: %w", name, ErrNotFound)
	}
	delete(s.profiles, name)
	s.notify(ChangeDeleted, Profile{ProfileName: name}, "")
	return nil
}

// Validate reports the value of permission within the named profile.
// A missing profile, missing permission or unparsable value all yield
// DecisionUndetermined.
func (s *MemoryStore) Validate(name, permission string) Decision {
	s.mu.RLock()
	p, ok := s.profiles[name]
	var raw string
	var found bool
	if ok {
		raw, found = p.Parameters[permission]
	}
	s.mu.RUnlock()

	switch {
	case !ok:
		log.Printf("[profile] validate %s/%s: profile not found", name, permission)
		return DecisionUndetermined
	case !found:
		log.Printf("[profile] validate %s/%s: permission not found", name, permission)
		return DecisionUndetermined
	}

	b, err := ParseValue(raw)
	if err != nil {
		log.Printf("[profile] validate %s/%s: %v", name, permission, err)
		return DecisionUndetermined
	}
	if b {
		return DecisionTrue
	}
	return DecisionFalse
}

// Toggle flips a boolean permission in place. Failures are logged and
// otherwise ignored.
func (s *MemoryStore) Toggle(name, permission string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[name]
	if !ok {
		s.skipToggle(name, permission, "profile not found")
		return
	}
	raw, ok := p.Parameters[permission]
	if !ok {
		s.skipToggle(name, permission, "permission not found")
		return
	}
	b, err := ParseValue(raw)
	if err != nil {
		s.skipToggle(name, permission, err.Error())
		return
	}

	// Parameters is never shared outside the store, so in-place writes are safe under the lock.
	p.Parameters[permission] = FormatValue(!b)
	s.notify(ChangeToggled, p, permission)
}

func (s *MemoryStore) skipToggle(name, permission, reason string) {
	log.Printf("[profile] toggle %s/%s skipped: %s", name, permission, reason)
	for _, o := range s.observers {
		if so, ok := o.(ToggleSkipObserver); ok {
			so.ToggleSkipped(name, permission, reason)
		}
	}
}

// notify must be called with s.mu held for writing.
func (s *MemoryStore) notify(kind ChangeKind, p Profile, permission string) {
	if len(s.observers) == 0 {
		return
	}
	change := Change{
		Kind:       kind,
		Profile:    p.Clone(),
		Permission: permission,
		Count:      len(s.profiles),
		At:         s.now(),
	}
	for _, o := range s.observers {
		o.ProfileChanged(change)
	}
}
