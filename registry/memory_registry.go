package registry

import "sync"

// MemoryRegistry keeps sinks in process. It ignores TTLs and is meant for tests and
// single-host setups where running etcd is not worth it.
type MemoryRegistry struct {
	mu       sync.Mutex
	streams  map[string][]SinkInstance
	watchers map[string][]chan []SinkInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		streams:  make(map[string][]SinkInstance),
		watchers: make(map[string][]chan []SinkInstance),
	}
}

func (m *MemoryRegistry) Register(stream string, instance SinkInstance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.streams[stream]
	for i, inst := range insts {
		if inst.Addr == instance.Addr {
			insts[i] = instance
			m.notify(stream)
			return nil
		}
	}
	m.streams[stream] = append(insts, instance)
	m.notify(stream)
	return nil
}

func (m *MemoryRegistry) Deregister(stream string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.streams[stream]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.streams[stream] = append(insts[:i:i], insts[i+1:]...)
			m.notify(stream)
			break
		}
	}
	return nil
}

func (m *MemoryRegistry) Discover(stream string) ([]SinkInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SinkInstance(nil), m.streams[stream]...), nil
}

func (m *MemoryRegistry) Watch(stream string) <-chan []SinkInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []SinkInstance, 1)
	m.watchers[stream] = append(m.watchers[stream], ch)
	return ch
}

// notify pushes the latest list to every watcher, replacing a stale unread one. Caller holds mu.
func (m *MemoryRegistry) notify(stream string) {
	snapshot := append([]SinkInstance(nil), m.streams[stream]...)
	for _, ch := range m.watchers[stream] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
