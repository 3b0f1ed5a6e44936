// Package session keeps short-lived per-chat state in memory. Values are
// addressed by a key path, intermediate levels are created on demand.
// Nothing is persisted, a restart forgets every session.
package session

import "sync"

type node map[string]any

// Entry is a single path/value pair for SetAll.
type Entry struct {
	Path  []string
	Value any
}

// At builds an Entry.
func At(value any, path ...string) Entry {
	return Entry{Path: path, Value: value}
}

// Store is safe for concurrent use, every call holds one lock for its whole
// duration.
type Store struct {
	mu    sync.Mutex
	chats map[int64]node
}

func NewStore() *Store {
	return &Store{chats: make(map[int64]node)}
}

// Get returns the value stored at path. Inner levels are returned as a
// copy of map[string]any so callers can't mutate the store.
func (s *Store) Get(chatID int64, path ...string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur any = s.chats[chatID]
	if cur == nil {
		return nil, false
	}

	for _, key := range path {
		n, ok := cur.(node)
		if !ok {
			return nil, false
		}
		cur, ok = n[key]
		if !ok {
			return nil, false
		}
	}

	if n, ok := cur.(node); ok {
		return copyNode(n), true
	}
	return cur, true
}

// Set stores value at path. A nil value removes the path.
func (s *Store) Set(chatID int64, value any, path ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(chatID, path, value)
}

// SetAll applies entries in order without releasing the lock in between.
func (s *Store) SetAll(chatID int64, entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.set(chatID, e.Path, e.Value)
	}
}

// Delete removes path, or the whole session when path is empty.
func (s *Store) Delete(chatID int64, path ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(path) == 0 {
		delete(s.chats, chatID)
		return
	}
	s.set(chatID, path, nil)
}

// Len returns the number of chats with a session.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *Store) set(chatID int64, path []string, value any) {
	if len(path) == 0 {
		return
	}

	cur, ok := s.chats[chatID]
	if !ok {
		if value == nil {
			return
		}
		cur = make(node)
		s.chats[chatID] = cur
	}

	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(node)
		if !ok {
			if value == nil {
				return
			}
			next = make(node)
			cur[key] = next
		}
		cur = next
	}

	last := path[len(path)-1]
	if value == nil {
		delete(cur, last)
		return
	}
	if m, ok := value.(map[string]any); ok {
		value = toNode(m)
	}
	cur[last] = value
}

// Lookup is a typed Get. A value of another type reports false.
func Lookup[T any](s *Store, chatID int64, path ...string) (T, bool) {
	var zero T
	v, ok := s.Get(chatID, path...)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func copyNode(n node) map[string]any {
	out := make(map[string]any, len(n))
	for k, v := range n {
		if inner, ok := v.(node); ok {
			out[k] = copyNode(inner)
			continue
		}
		out[k] = v
	}
	return out
}

func toNode(m map[string]any) node {
	out := make(node, len(m))
	for k, v := range m {
		if inner, ok := v.(map[string]any); ok {
			out[k] = toNode(inner)
			continue
		}
		out[k] = v
	}
	return out
}
