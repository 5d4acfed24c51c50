package localstate

import (
	"context"
	"sync"
)

// Backend persists the encoded state and reports writes made by other instances.
type Backend interface {
	// Load returns the stored bytes, or nil when nothing was stored yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	// Watch calls onChange after another writer replaced the state. It blocks until ctx ends.
	Watch(ctx context.Context, onChange func()) error
}

// MemoryBackend keeps state in memory. Inject simulates a write from another instance.
type MemoryBackend struct {
	mutex   sync.Mutex
	data    []byte
	changes chan struct{}
}

// NewMemoryBackend returns a backend seeded with data, which may be nil.
func NewMemoryBackend(data []byte) *MemoryBackend {
	return &MemoryBackend{data: append([]byte(nil), data...), changes: make(chan struct{}, 1)}
}

func (backend *MemoryBackend) Load(context.Context) ([]byte, error) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if backend.data == nil {
		return nil, nil
	}
	return append([]byte(nil), backend.data...), nil
}

func (backend *MemoryBackend) Save(_ context.Context, data []byte) error {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	backend.data = append([]byte(nil), data...)
	return nil
}

// Inject replaces the stored bytes as a foreign writer and notifies the watcher.
func (backend *MemoryBackend) Inject(data []byte) {
	backend.mutex.Lock()
	backend.data = append([]byte(nil), data...)
	backend.mutex.Unlock()
	select {
	case backend.changes <- struct{}{}:
	default:
	}
}

func (backend *MemoryBackend) Watch(ctx context.Context, onChange func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-backend.changes:
			onChange()
		}
	}
}
