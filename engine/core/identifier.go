package core

import (
	"fmt"
	"sync"
)

// Identifiers hands out small integer ids and reuses released ones, lowest first.
type Identifiers struct {
	mu     sync.Mutex
	owners []interface{}
}

func NewIdentifiers() *Identifiers {
	return &Identifiers{}
}

func (ids *Identifiers) Acquire(owner interface{}) uint32 {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	for i, o := range ids.owners {
		// Existing free spot. Take it.
		if o == nil {
			ids.owners[i] = owner
			return uint32(i)
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ids.owners = append(ids.owners, owner)
	return uint32(len(ids.owners) - 1)
}

func (ids *Identifiers) Release(id uint32) error {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if int(id) >= len(ids.owners) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, len(ids.owners))
	}
	if ids.owners[id] == nil {
		return fmt.Errorf("identifier release: id '%d' is not in use", id)
	}
	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}

// Owner returns the owner registered for id, or nil.
func (ids *Identifiers) Owner(id uint32) interface{} {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	if int(id) >= len(ids.owners) {
		return nil
	}
	return ids.owners[id]
}
