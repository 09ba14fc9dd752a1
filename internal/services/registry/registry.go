// Package registry allocates session codes and serializes work per session.
package registry

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/makeitmeme/internal/dependencies/random"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// MaxCodeAttempts bounds the draws made when looking for a free code
const MaxCodeAttempts = 32

// Registry hands out unique session codes and per-key exclusive sections.
// Sections on different keys never contend.
type Registry struct {
	storage storage.Storage
	random  random.Random

	// Serializes check-then-insert of new codes
	reserveMu sync.Mutex

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Registry
func New(storage storage.Storage, random random.Random) *Registry {
	return &Registry{
		storage: storage,
		random:  random,
		locks:   make(map[string]*keyLock),
	}
}

// Reserve draws a free code and calls create with it while no other
// reservation can run, so two sessions never receive the same code
func (r *Registry) Reserve(ctx context.Context, create func(code model.SessionCode) error) (model.SessionCode, error) {
	r.reserveMu.Lock()
	defer r.reserveMu.Unlock()

	for range MaxCodeAttempts {
		code := model.SessionCode(r.random.String(model.SessionCodeLength, model.SessionCodeAlphabet))
		if !code.Valid() {
			continue
		}
		exists, err := r.storage.SessionExists(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if err := create(code); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", model.ErrCodeSpaceExhausted
}

// Find returns the session with the given code
func (r *Registry) Find(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	if !code.Valid() {
		return nil, model.ErrInvalidCode
	}
	return r.storage.GetSession(ctx, code)
}

// Lock enters the exclusive sections for the given keys and returns the
// function that leaves them. Keys are taken in sorted order so callers
// locking overlapping sets cannot deadlock.
func (r *Registry) Lock(keys ...string) func() {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*keyLock, 0, len(keys))
	for _, key := range keys {
		l := r.acquire(key)
		l.mu.Lock()
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				r.release(keys[i], held[i])
			}
		})
	}
}

// SessionKey is the lock key of a session's aggregate
func SessionKey(code model.SessionCode) string {
	return "session:" + string(code)
}

// PlayerKey is the lock key of a player's session reference
func PlayerKey(id model.PlayerID) string {
	return "player:" + string(id)
}

func (r *Registry) acquire(key string) *keyLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	return l
}

func (r *Registry) release(key string, l *keyLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, key)
	}
}

// activeLocks reports how many keys currently have holders or waiters
func (r *Registry) activeLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
