package store

import (
	"log"
	"sync"
	"time"

	"battle-service/internal/models"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper deletes rooms that have been terminal for longer than the
// retention window, bounding memory growth from abandoned rooms.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	lockRoom  func(roomID string) sync.Locker
	onDelete  func(roomID string)
	scheduler gocron.Scheduler
}

// NewSweeper builds a sweeper over the store. lockRoom returns the
// per-room mutex the orchestrator serializes handlers with; the sweeper
// holds it while deleting so an in-flight handler cannot resurrect a
// swept room. onDelete runs for every swept room after it is removed,
// so the orchestrator can release timers and subscriber sets. Both may
// be nil.
func NewSweeper(store Store, retention, interval time.Duration, lockRoom func(roomID string) sync.Locker, onDelete func(roomID string)) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		lockRoom:  lockRoom,
		onDelete:  onDelete,
	}
}

func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.SweepOnce(time.Now())
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	s.scheduler = sched
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
}

// SweepOnce deletes every terminal room whose EndedAt is older than
// the retention window. Rooms without an EndedAt are never swept, even
// when their status looks terminal. Each deletion runs under the room's
// lock, re-reading the room first: a handler that raced the scan (a
// restart at the retention boundary) wins, and the room survives the
// sweep.
func (s *Sweeper) SweepOnce(now time.Time) int {
	swept := 0
	for _, room := range s.store.List() {
		if !s.expired(room, now) {
			continue
		}

		if s.lockRoom != nil {
			mu := s.lockRoom(room.RoomID)
			mu.Lock()
			current, ok := s.store.Get(room.RoomID)
			if !ok || !s.expired(current, now) {
				mu.Unlock()
				continue
			}
			s.store.Delete(room.RoomID)
			if s.onDelete != nil {
				s.onDelete(room.RoomID)
			}
			mu.Unlock()
		} else {
			s.store.Delete(room.RoomID)
			if s.onDelete != nil {
				s.onDelete(room.RoomID)
			}
		}
		swept++
	}
	if swept > 0 {
		log.Printf("Swept %d expired room(s)", swept)
	}
	return swept
}

func (s *Sweeper) expired(room models.Room, now time.Time) bool {
	if !room.IsTerminal() || room.EndedAt == nil {
		return false
	}
	return now.Sub(*room.EndedAt) >= s.retention
}
