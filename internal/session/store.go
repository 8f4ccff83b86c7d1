// Package session owns the current identity. The identity is derived from a
// persisted bearer credential at startup or set by a successful login, and
// cleared on logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// LoginPath is where Logout sends the navigator.
const LoginPath = "/login"

var (
	ErrNoCredential      = errors.New("no stored credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// CredentialStore persists the opaque bearer token.
type CredentialStore interface {
	Credential(ctx context.Context) (string, error)
	SaveCredential(ctx context.Context, token string) error
	RemoveCredential(ctx context.Context) error
}

// Decoder extracts the identity claims from a token.
type Decoder interface {
	Decode(token string) (*domain.Identity, error)
}

type Navigator interface {
	RedirectTo(ctx context.Context, path string)
}

type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) RedirectTo(ctx context.Context, path string) {
	f(ctx, path)
}

// State is the read model published to listeners.
type State struct {
	User      *domain.Identity
	Resolving bool
}

type Listener func(State)

type Option func(*Store)

// WithClearInvalidCredential makes Resolve remove a stored credential that
// cannot be decoded. By default it is left in place until Logout.
func WithClearInvalidCredential(clear bool) Option {
	return func(s *Store) {
		s.clearInvalid = clear
	}
}

type Store struct {
	mu        sync.RWMutex
	user      *domain.Identity
	resolving bool
	// token is the credential last read or written through this store.
	token string

	// cmu orders credential writes against Resolve and Reload.
	cmu sync.Mutex

	creds        CredentialStore
	decoder      Decoder
	nav          Navigator
	clearInvalid bool

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore returns a store in the resolving state; call Resolve to leave it.
func NewStore(creds CredentialStore, decoder Decoder, nav Navigator, opts ...Option) *Store {
	s := &Store{
		resolving: true,
		creds:     creds,
		decoder:   decoder,
		nav:       nav,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve derives the identity from the stored credential. A missing or
// undecodable credential leaves the session anonymous; only a storage failure
// is returned.
func (s *Store) Resolve(ctx context.Context) error {
	s.setState(nil, true)

	s.cmu.Lock()
	defer s.cmu.Unlock()

	token, err := s.readCredential(ctx)
	if err != nil {
		s.setState(nil, false)
		return err
	}
	s.setState(s.identify(ctx, token), false)
	return nil
}

// Reload re-derives the identity after another process changed the stored
// credential. A credential equal to the one this store last read or wrote is
// not re-decoded, so an identity set by Login survives reloads triggered by
// our own writes. Reload never enters the resolving state, and a storage
// failure keeps the current identity.
func (s *Store) Reload(ctx context.Context) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	token, err := s.readCredential(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	unchanged := token == s.token
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	s.setState(s.identify(ctx, token), false)
	return nil
}

// readCredential returns the stored token, or "" when there is none.
func (s *Store) readCredential(ctx context.Context) (string, error) {
	token, err := s.creds.Credential(ctx)
	if errors.Is(err, ErrNoCredential) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return token, nil
}

func (s *Store) identify(ctx context.Context, token string) *domain.Identity {
	if token == "" {
		s.remember("")
		return nil
	}

	user, err := s.decoder.Decode(token)
	if err == nil && user != nil {
		s.remember(token)
		return user
	}

	log.Printf("stored credential rejected: %v \n", err)
	if s.clearInvalid {
		if err := s.removeCredential(ctx); err != nil {
			log.Printf("credential remove error: %v \n", err)
		} else {
			return nil
		}
	}
	s.remember(token)
	return nil
}

func (s *Store) remember(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Credential reads the stored token. Together with SaveCredential and
// RemoveCredential it lets the API client persist through the session, which
// then knows which credential it wrote itself.
func (s *Store) Credential(ctx context.Context) (string, error) {
	return s.creds.Credential(ctx)
}

func (s *Store) SaveCredential(ctx context.Context, token string) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	if err := s.creds.SaveCredential(ctx, token); err != nil {
		return err
	}
	s.remember(token)
	return nil
}

func (s *Store) RemoveCredential(ctx context.Context) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.removeCredential(ctx)
}

func (s *Store) removeCredential(ctx context.Context) error {
	if err := s.creds.RemoveCredential(ctx); err != nil {
		return err
	}
	s.remember("")
	return nil
}

// Login sets the identity from an authenticated server response. Persisting
// the credential is the caller's job.
func (s *Store) Login(user domain.Identity) {
	s.setState(&user, false)
}

// Logout removes the credential, clears the identity and navigates to the
// login view. The in-memory transition happens even when removal fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.RemoveCredential(ctx)
	if err != nil {
		log.Printf("credential remove error: %v \n", err)
		err = fmt.Errorf("remove credential: %w", err)
	}

	s.setState(nil, false)
	s.nav.RedirectTo(ctx, LoginPath)
	return err
}

// CurrentUser returns a copy of the identity, or nil when anonymous.
func (s *Store) CurrentUser() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIdentity(s.user)
}

func (s *Store) IsResolving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolving
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{User: copyIdentity(s.user), Resolving: s.resolving}
}

func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) setState(user *domain.Identity, resolving bool) {
	s.mu.Lock()
	s.user = copyIdentity(user)
	s.resolving = resolving
	state := State{User: copyIdentity(s.user), Resolving: s.resolving}
	s.mu.Unlock()

	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

func copyIdentity(u *domain.Identity) *domain.Identity {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
