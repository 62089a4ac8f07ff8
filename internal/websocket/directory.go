package websocket

import (
	"sync"

	"go.uber.org/zap"

	"tutorrelay/pkg/interfaces"
	"tutorrelay/pkg/types"
)

// Directory maps participant names to their live connection, one per name and
// role. The newest registration wins.
type Directory struct {
	mu       sync.RWMutex
	tutors   map[string]interfaces.Handle // NormalizeName(name) -> handle
	students map[string]interfaces.Handle
	logger   *zap.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		tutors:   make(map[string]interfaces.Handle),
		students: make(map[string]interfaces.Handle),
		logger:   logger,
	}
}

func (d *Directory) table(role types.Role) map[string]interfaces.Handle {
	switch role {
	case types.RoleTutor:
		return d.tutors
	case types.RoleStudent:
		return d.students
	}
	return nil
}

// Register binds h to name for role, replacing any previous handle. The
// replaced handle is left open; its own disconnect will not evict h.
func (d *Directory) Register(role types.Role, name string, h interfaces.Handle) error {
	if h == nil {
		return ErrNilHandle
	}
	key := types.NormalizeName(name)
	if key == "" {
		return ErrEmptyName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	table := d.table(role)
	if table == nil {
		return ErrUnknownRole
	}

	// A handle re-registering under a new name gives up the old one.
	if prev := h.BoundName(role); prev != "" && prev != key && table[prev] == h {
		delete(table, prev)
	}

	if existing, ok := table[key]; ok && existing != h {
		d.logger.Info("Replacing connection",
			zap.String("role", string(role)),
			zap.String("name", key),
			zap.String("previous", existing.ID()),
			zap.String("connection", h.ID()))
	}

	table[key] = h
	h.BindName(role, key)
	return nil
}

// Unregister removes h's bindings, but only those that still point at h.
func (d *Directory) Unregister(h interfaces.Handle) {
	if h == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, role := range []types.Role{types.RoleTutor, types.RoleStudent} {
		key := h.BoundName(role)
		if key == "" {
			continue
		}
		table := d.table(role)
		if current, ok := table[key]; ok && current == h {
			delete(table, key)
		}
	}
}

// Lookup returns the open handle registered for name, if any.
func (d *Directory) Lookup(role types.Role, name string) (interfaces.Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	table := d.table(role)
	if table == nil {
		return nil, false
	}
	h, ok := table[types.NormalizeName(name)]
	if !ok || !h.IsOpen() {
		return nil, false
	}
	return h, true
}

// Stats returns the number of bound tutors and students.
func (d *Directory) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]int{
		"tutor_connections":   len(d.tutors),
		"student_connections": len(d.students),
	}
}
