package memory

import (
	"strings"
	"sync"

	"krishi-assistant/internal/common/metrics"
)

// Turn is a completed (query, answer) pair for a room. Turns are immutable
// once appended; only eviction removes them.
type Turn struct {
	Query  string
	Answer string
}

// Store keeps an ordered, bounded conversation log per room. Rooms are
// fully independent: operations on one room never block another. Within a
// room, appends serialize and history ordering matches completion order.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	historyCap   int
	contextTurns int
}

type room struct {
	mu    sync.Mutex
	turns []Turn
}

func NewStore(historyCap, contextTurns int) *Store {
	if historyCap < 1 {
		historyCap = 200
	}
	if contextTurns < 1 {
		contextTurns = 5
	}
	return &Store{
		rooms:        make(map[string]*room),
		historyCap:   historyCap,
		contextTurns: contextTurns,
	}
}

func (s *Store) room(id string) *room {
	s.mu.RLock()
	r, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r
	}
	r = &room{}
	s.rooms[id] = r
	return r
}

// Append records a completed turn, evicting the oldest turns once the room
// exceeds its cap.
func (s *Store) Append(roomID, query, answer string) {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.turns = append(r.turns, Turn{Query: query, Answer: answer})
	if excess := len(r.turns) - s.historyCap; excess > 0 {
		r.turns = append([]Turn(nil), r.turns[excess:]...)
		metrics.MemoryEvictions.Add(float64(excess))
	}
}

// History returns a copy of the room's turns in insertion order.
func (s *Store) History(roomID string) []Turn {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.turns...)
}

// Context renders the most recent turns as alternating "User:"/"Assistant:"
// lines, bounding the prompt size fed to the classifier and synthesizer.
func (s *Store) Context(roomID string) string {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	start := len(r.turns) - s.contextTurns
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for i, t := range r.turns[start:] {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("User: ")
		b.WriteString(t.Query)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Answer)
	}
	return b.String()
}

// Len returns the number of stored turns for a room.
func (s *Store) Len(roomID string) int {
	r := s.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}
