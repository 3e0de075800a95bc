package booking

import (
	"context"
	"sync"
)

// RoomLocks serializes admission per room. Requests for different rooms never
// wait on each other, and entries are dropped once no caller holds or waits
// on them.
type RoomLocks struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	token chan struct{}
	refs  int
}

// NewRoomLocks returns an empty lock table.
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{rooms: make(map[string]*roomLock)}
}

// Lock blocks until the room's lock is held or ctx is done. The returned
// function releases the lock and is safe to call more than once.
func (l *RoomLocks) Lock(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	rl, ok := l.rooms[roomID]
	if !ok {
		rl = &roomLock{token: make(chan struct{}, 1)}
		l.rooms[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.token <- struct{}{}:
	case <-ctx.Done():
		l.release(roomID, rl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-rl.token
			l.release(roomID, rl)
		})
	}, nil
}

func (l *RoomLocks) release(roomID string, rl *roomLock) {
	l.mu.Lock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.rooms, roomID)
	}
	l.mu.Unlock()
}

// Len returns the number of rooms currently tracked.
func (l *RoomLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
