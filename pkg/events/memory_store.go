package events

import "sync"

// InMemoryStore keeps events per stream in memory.
type InMemoryStore struct {
	mutex   sync.RWMutex
	streams map[string][]Event
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{streams: make(map[string][]Event)}
}

// AppendEvent appends to a stream, assigning the next version number.
func (s *InMemoryStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	versioned := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}
	s.streams[streamID] = append(s.streams[streamID], versioned)
	return nil
}

// ReadEvents returns a stream's events in append order.
func (s *InMemoryStore) ReadEvents(streamID string) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := s.streams[streamID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}
