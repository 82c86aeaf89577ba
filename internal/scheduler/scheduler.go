package scheduler

import (
	"sync"
	"time"
)

// Kind names the intent a timer fires for.
type Kind string

const (
	// KindRoundTimeout closes the current answering window.
	KindRoundTimeout Kind = "round_timeout"
	// KindNextQuiz ends the reveal window and sends the next quiz.
	KindNextQuiz Kind = "next_quiz"
)

// Fired describes a timer that went off. The handler must re-read the
// room from the store; a Fired value carries no room snapshot on
// purpose.
type Fired struct {
	RoomID    string
	Kind      Kind
	QuizIndex int
}

// Scheduler owns at most one pending timer per room. Arming a room
// replaces whatever was pending; cancelling on a terminal transition
// guarantees a stale timer cannot resurrect a dead round.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(Fired)
}

func New(fire func(Fired)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms the room's timer slot to fire at fireAt. A fireAt in
// the past fires immediately on the timer goroutine.
func (s *Scheduler) Schedule(roomID string, fireAt time.Time, kind Kind, quizIndex int) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roomID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.clearSlot(roomID, t)
		s.fire(Fired{RoomID: roomID, Kind: kind, QuizIndex: quizIndex})
	})
	s.timers[roomID] = t
}

// clearSlot removes the room's slot only while it still holds this
// timer. A fired callback can lose the race against a Schedule that
// re-armed the room, and must not unregister the newer timer.
func (s *Scheduler) clearSlot(roomID string, t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timers[roomID] == t {
		delete(s.timers, roomID)
	}
}

func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

// Pending reports whether the room currently has an armed timer.
func (s *Scheduler) Pending(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[roomID]
	return ok
}

// Stop cancels every armed timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
