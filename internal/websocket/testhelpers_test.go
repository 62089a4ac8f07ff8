package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tutorrelay/pkg/types"
)

func contextWithCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// fakeHandle is an in-memory interfaces.Handle.
type fakeHandle struct {
	id string

	mu     sync.Mutex
	open   bool
	names  map[types.Role]string
	frames []interface{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{id: uuid.NewString(), open: true, names: make(map[types.Role]string)}
}

func (f *fakeHandle) ID() string { return f.id }

func (f *fakeHandle) TrySend(v interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return false
	}
	f.frames = append(f.frames, v)
	return true
}

func (f *fakeHandle) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeHandle) BindName(role types.Role, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[role] = key
}

func (f *fakeHandle) BoundName(role types.Role) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[role]
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}
