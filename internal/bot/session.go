package bot

import (
	"sync"

	"hrtoolkit/internal/logic"
)

// session is the state of one chat. The draw holds the only copy of the
// roster. mu serializes roster changes and guards the group set.
type session struct {
	mu         sync.Mutex
	draw       *logic.Draw
	rosterGen  uint64
	groups     []logic.Group
	groupingID string
	groupGen   uint64
}

func newSession(rng logic.Rand) *session {
	return &session{draw: logic.NewDraw(nil, rng)}
}

func (s *session) names() []string { return s.draw.Roster() }

// setRoster replaces the roster and resets the draw, canceling a running
// spin. Uploads started before the change become stale.
func (s *session) setRoster(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosterGen++
	s.draw.SetRoster(names)
}

// beginUpload reserves a roster generation for a file read. Any later
// roster change or upload makes it stale.
func (s *session) beginUpload() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosterGen++
	return s.rosterGen
}

// finishUpload applies names read under gen unless the roster changed since.
func (s *session) finishUpload(gen uint64, names []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.rosterGen {
		return false
	}
	s.draw.SetRoster(names)
	return true
}

// setGroups replaces the group set and returns its generation.
func (s *session) setGroups(groups []logic.Group, groupingID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupGen++
	s.groups = groups
	s.groupingID = groupingID
	return s.groupGen
}

// renameGroups swaps in renamed groups unless a newer set replaced them.
func (s *session) renameGroups(gen uint64, groups []logic.Group) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.groupGen {
		return false
	}
	s.groups = groups
	return true
}

func (s *session) lastGroups() []logic.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}
