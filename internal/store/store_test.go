package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battle-service/internal/constants"
	"battle-service/internal/models"
)

func room(id, status string) models.Room {
	return models.Room{
		RoomID:       id,
		Status:       status,
		Participants: []models.Participant{},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set(room("r1", constants.RoomStatusWaiting))
	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.RoomID)

	s.Set(room("r2", constants.RoomStatusWaiting))
	assert.Len(t, s.List(), 2)

	s.Delete("r1")
	_, ok = s.Get("r1")
	assert.False(t, ok)
	assert.Len(t, s.List(), 1)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	r := room("r1", constants.RoomStatusWaiting)
	r.Participants = []models.Participant{{ParticipantID: "p1"}}
	s.Set(r)

	got, _ := s.Get("r1")
	got.Participants[0].Score = 99

	again, _ := s.Get("r1")
	assert.Zero(t, again.Participants[0].Score, "mutating a read must not leak into the store")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", n)
			s.Set(room(id, constants.RoomStatusWaiting))
			s.Get(id)
			s.List()
			s.Delete(id)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, s.List())
}

func TestSweepOnce(t *testing.T) {
	now := time.Now()
	past := now.Add(-15 * time.Minute)
	recent := now.Add(-1 * time.Minute)

	finishedOld := room("old", constants.RoomStatusFinished)
	finishedOld.EndedAt = &past
	invalidOld := room("invalid-old", constants.RoomStatusInvalid)
	invalidOld.EndedAt = &past
	finishedRecent := room("recent", constants.RoomStatusFinished)
	finishedRecent.EndedAt = &recent
	noEndedAt := room("no-ended-at", constants.RoomStatusFinished)
	active := room("active", constants.RoomStatusInProgress)

	s := NewMemoryStore()
	for _, r := range []models.Room{finishedOld, invalidOld, finishedRecent, noEndedAt, active} {
		s.Set(r)
	}

	var deleted []string
	sw := NewSweeper(s, 10*time.Minute, time.Minute, nil, func(roomID string) {
		deleted = append(deleted, roomID)
	})

	swept := sw.SweepOnce(now)

	assert.Equal(t, 2, swept)
	assert.ElementsMatch(t, []string{"old", "invalid-old"}, deleted)

	_, ok := s.Get("recent")
	assert.True(t, ok, "rooms inside the retention window stay")
	_, ok = s.Get("no-ended-at")
	assert.True(t, ok, "rooms without EndedAt are never swept")
	_, ok = s.Get("active")
	assert.True(t, ok)
}

func TestSweepExactlyAtRetentionBoundary(t *testing.T) {
	now := time.Now()
	boundary := now.Add(-10 * time.Minute)

	r := room("boundary", constants.RoomStatusFinished)
	r.EndedAt = &boundary

	s := NewMemoryStore()
	s.Set(r)

	sw := NewSweeper(s, 10*time.Minute, time.Minute, nil, nil)
	assert.Equal(t, 1, sw.SweepOnce(now), "retention window elapsed means eligible")
}

// hookedLocker runs a function after acquiring the underlying mutex,
// standing in for a handler that slipped in ahead of the sweeper.
type hookedLocker struct {
	mu     sync.Mutex
	onLock func()
}

func (l *hookedLocker) Lock() {
	l.mu.Lock()
	if l.onLock != nil {
		l.onLock()
	}
}

func (l *hookedLocker) Unlock() { l.mu.Unlock() }

func TestSweepOnceWaitsForRoomLock(t *testing.T) {
	now := time.Now()
	past := now.Add(-15 * time.Minute)

	r := room("held", constants.RoomStatusFinished)
	r.EndedAt = &past

	s := NewMemoryStore()
	s.Set(r)

	locker := &hookedLocker{}
	sw := NewSweeper(s, 10*time.Minute, time.Minute, func(string) sync.Locker { return locker }, nil)

	locker.mu.Lock()
	done := make(chan int)
	go func() { done <- sw.SweepOnce(now) }()

	select {
	case <-done:
		t.Fatal("sweep completed while the room lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	_, ok := s.Get("held")
	assert.True(t, ok, "room must survive while its lock is held")

	locker.mu.Unlock()
	assert.Equal(t, 1, <-done)
	_, ok = s.Get("held")
	assert.False(t, ok)
}

func TestSweepOnceRechecksUnderLock(t *testing.T) {
	now := time.Now()
	past := now.Add(-15 * time.Minute)

	r := room("restarted", constants.RoomStatusFinished)
	r.EndedAt = &past

	s := NewMemoryStore()
	s.Set(r)

	// The handler wins the lock race and restarts the room before the
	// sweeper gets in; the re-read must see the fresh state and skip.
	locker := &hookedLocker{}
	locker.onLock = func() {
		locker.onLock = nil
		fresh := room("restarted", constants.RoomStatusWaiting)
		s.Set(fresh)
	}

	sw := NewSweeper(s, 10*time.Minute, time.Minute, func(string) sync.Locker { return locker }, nil)

	assert.Zero(t, sw.SweepOnce(now))
	got, ok := s.Get("restarted")
	require.True(t, ok, "a room revived under its lock must not be swept")
	assert.Equal(t, constants.RoomStatusWaiting, got.Status)
}
