package store

import (
	"context"
	"errors"
	"sync"

	"github.com/brayobiz/campus-hub-sub000/internal/models"
)

// Store namespaces. Keys are "<namespace>:<device id>".
const (
	UserNamespace   = "campus-hub-user"
	CampusNamespace = "campus-hub-campus"
)

// UserStore holds the signed-in user or nil.
type UserStore = Persisted[models.SessionUser]

// CampusStore holds the selected campus or nil.
type CampusStore = Persisted[models.CampusSelection]

// ModalStore is the transient "post composer open" flag. It is never persisted.
type ModalStore struct {
	mu   sync.RWMutex
	open bool
}

func (m *ModalStore) Open() {
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
}

func (m *ModalStore) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

func (m *ModalStore) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Stores bundles the client state of one device.
type Stores struct {
	User   *UserStore
	Campus *CampusStore
	Modal  *ModalStore

	loaded chan struct{}
	once   sync.Once
}

// NewStores creates the stores of one device on top of kv.
func NewStores(kv KV, deviceID string) *Stores {
	return &Stores{
		User:   newPersisted[models.SessionUser](kv, UserNamespace+":"+deviceID),
		Campus: newPersisted[models.CampusSelection](kv, CampusNamespace+":"+deviceID),
		Modal:  &ModalStore{},
		loaded: make(chan struct{}),
	}
}

// Load hydrates both persisted stores. Errors are joined; both stores still
// report loaded afterwards.
func (s *Stores) Load(ctx context.Context) error {
	errUser := s.User.Load(ctx)
	errCampus := s.Campus.Load(ctx)
	s.once.Do(func() { close(s.loaded) })
	return errors.Join(errUser, errCampus)
}

// Loaded is closed once both stores are hydrated.
func (s *Stores) Loaded() <-chan struct{} { return s.loaded }

// Hydrated reports whether Load has finished.
func (s *Stores) Hydrated() bool {
	select {
	case <-s.loaded:
		return true
	default:
		return false
	}
}

// WaitLoaded blocks until hydration finishes or ctx is done.
func (s *Stores) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearAll empties the user and campus stores.
func (s *Stores) ClearAll(ctx context.Context) error {
	return errors.Join(s.User.Clear(ctx), s.Campus.Clear(ctx))
}
