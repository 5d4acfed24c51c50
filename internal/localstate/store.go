package localstate

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/events"
	"go.uber.org/zap"
)

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets where state.updated notifications go.
func WithPublisher(publisher events.Publisher) Option {
	return func(store *Store) {
		store.publisher = publisher
	}
}

// WithLogger sets the logger for background reload failures.
func WithLogger(logger *zap.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// WithClock replaces the clock used for default pet stats.
func WithClock(now func() time.Time) Option {
	return func(store *Store) {
		store.now = now
	}
}

// Store owns the process-wide local state.
type Store struct {
	backend   Backend
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mutex       sync.Mutex
	state       State
	lastWritten []byte
}

// Open loads the persisted state, migrating and flushing it when it was absent or
// in an older shape.
func Open(ctx context.Context, backend Backend, options ...Option) (*Store, error) {
	store := &Store{backend: backend, logger: zap.NewNop(), now: time.Now}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	raw, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local state: %w", err)
	}
	state := Default(store.now().UnixMilli())
	needsFlush := raw == nil
	if raw != nil {
		decoded, migrated, err := Decode(raw, store.now().UnixMilli())
		if err != nil {
			return nil, err
		}
		state = decoded
		needsFlush = migrated
	}
	store.state = state
	store.lastWritten = raw
	if needsFlush {
		if err := store.flushLocked(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Snapshot returns a copy of the current state.
func (store *Store) Snapshot() State {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.state.Clone()
}

// Update applies mutate to a copy of the state, persists the result and publishes
// state.updated. A failing mutate or save leaves the state unchanged.
func (store *Store) Update(ctx context.Context, mutate func(state *State) error) (State, error) {
	store.mutex.Lock()
	next := store.state.Clone()
	if err := mutate(&next); err != nil {
		store.mutex.Unlock()
		return State{}, err
	}
	previous := store.state
	store.state = next
	if err := store.flushLocked(ctx); err != nil {
		store.state = previous
		store.mutex.Unlock()
		return State{}, err
	}
	snapshot := store.state.Clone()
	store.mutex.Unlock()
	store.publish(snapshot)
	return snapshot, nil
}

// Watch reloads the state whenever another instance writes it. It blocks until ctx ends.
func (store *Store) Watch(ctx context.Context) error {
	return store.backend.Watch(ctx, func() {
		if err := store.Reload(ctx); err != nil {
			store.logger.Warn("reload local state failed", zap.Error(err))
		}
	})
}

// Reload replaces the in-memory state with the stored one when it differs from
// the last write of this instance.
func (store *Store) Reload(ctx context.Context) error {
	raw, err := store.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load local state: %w", err)
	}
	if raw == nil {
		return nil
	}
	store.mutex.Lock()
	if bytes.Equal(raw, store.lastWritten) {
		store.mutex.Unlock()
		return nil
	}
	decoded, _, err := Decode(raw, store.now().UnixMilli())
	if err != nil {
		store.mutex.Unlock()
		return err
	}
	store.state = decoded
	store.lastWritten = raw
	snapshot := decoded.Clone()
	store.mutex.Unlock()
	store.publish(snapshot)
	return nil
}

func (store *Store) flushLocked(ctx context.Context) error {
	encoded, err := Encode(store.state)
	if err != nil {
		return fmt.Errorf("encode local state: %w", err)
	}
	if err := store.backend.Save(ctx, encoded); err != nil {
		return fmt.Errorf("save local state: %w", err)
	}
	store.lastWritten = encoded
	return nil
}

func (store *Store) publish(snapshot State) {
	if store.publisher == nil {
		return
	}
	store.publisher.Publish(events.Event{Topic: events.TopicStateUpdated, Payload: snapshot})
}
