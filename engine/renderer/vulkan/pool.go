package vulkan

import "sync"

// queueLocks serializes access to each queue family. Vulkan requires queue
// submission and presentation to be externally synchronized.
type queueLocks struct {
	mu     sync.Mutex
	queues map[uint32]*sync.Mutex
}

func newQueueLocks(families ...uint32) *queueLocks {
	ql := &queueLocks{queues: make(map[uint32]*sync.Mutex)}
	for _, family := range families {
		ql.lock(family)
	}
	return ql
}

func (ql *queueLocks) lock(family uint32) *sync.Mutex {
	ql.mu.Lock()
	defer ql.mu.Unlock()

	l, ok := ql.queues[family]
	if !ok {
		l = &sync.Mutex{}
		ql.queues[family] = l
	}
	return l
}

// Do runs fn while holding the lock of the queue family.
func (ql *queueLocks) Do(family uint32, fn func() error) error {
	l := ql.lock(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
