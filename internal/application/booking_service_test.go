package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/coworking-booking/internal/booking"
	"github.com/example/coworking-booking/internal/notify"
)

type bookingFixture struct {
	svc      *BookingService
	store    *fakeStore
	notifier *recordingNotifier
}

func newBookingFixture(t *testing.T, opts ...booking.Option) bookingFixture {
	t.Helper()

	store := newFakeStore()
	store.addUser(User{ID: alicePrincipal.UserID, Username: "alice", Email: "alice@example.com", Role: RoleUser})
	store.addUser(User{ID: bobPrincipal.UserID, Username: "bob", Email: "bob@example.com", Role: RoleUser})
	store.addUser(User{ID: adminPrincipal.UserID, Username: "admin", Email: "admin@example.com", Role: RoleAdmin})
	store.addRoom(Room{ID: "room-1", Name: "Focus Pod", Capacity: 4, Type: RoomTypeWorkspace, IsActive: true})
	store.addRoom(Room{ID: "room-2", Name: "Old Loft", Capacity: 10, Type: RoomTypeConference, IsActive: false})
	store.addRoom(Room{ID: "room-3", Name: "Board Room", Capacity: 12, Type: RoomTypeConference, IsActive: true})

	opts = append([]booking.Option{booking.WithTimeout(time.Second)}, opts...)
	notifier := &recordingNotifier{}
	svc := NewBookingService(store, store, store, booking.NewEngine(store, opts...), notifier, sequence("booking"), fixedNow)
	return bookingFixture{svc: svc, store: store, notifier: notifier}
}

// at returns an instant h hours after the start of the next day.
func at(h float64) time.Time {
	return referenceNow.Add(24*time.Hour + time.Duration(h*float64(time.Hour)))
}

func (f bookingFixture) seed(id, roomID, userID string, start, end time.Time) Booking {
	b := Booking{
		ID:           id,
		RoomID:       roomID,
		UserID:       userID,
		Start:        start,
		End:          end,
		Status:       booking.StatusConfirmed,
		Participants: 1,
		CreatedAt:    referenceNow,
		UpdatedAt:    referenceNow,
	}
	f.store.addBooking(b)
	return b
}

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("admits a free interval and notifies every channel", func(t *testing.T) {
		f := newBookingFixture(t)

		details, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11), Purpose: "  standup  ", Participants: 3},
		})
		require.NoError(t, err)

		assert.Equal(t, "booking-001", details.ID)
		assert.Equal(t, booking.StatusConfirmed, details.Status)
		assert.Equal(t, "standup", details.Purpose)
		assert.Equal(t, "Focus Pod", details.Room.Name)
		assert.Equal(t, "alice", details.User.Username)
		assert.Equal(t, time.Hour, details.Duration())
		assert.True(t, details.IsActive(referenceNow))

		assert.ElementsMatch(t, []string{"room:room-1", notify.GlobalChannel, notify.AdminChannel}, f.notifier.channels())
		for _, p := range f.notifier.events {
			assert.Equal(t, notify.EventBookingCreated, p.event.Type)
			assert.Equal(t, details.ID, p.event.BookingID)
			if p.channel == notify.AdminChannel {
				assert.Equal(t, "alice", p.event.User)
			} else {
				assert.Empty(t, p.event.User, p.channel)
			}
		}
	})

	t.Run("defaults participants to one", func(t *testing.T) {
		f := newBookingFixture(t)

		details, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, details.Participants)
	})

	t.Run("normalizes instants to UTC milliseconds", func(t *testing.T) {
		f := newBookingFixture(t)
		zone := time.FixedZone("UTC+2", 2*60*60)

		details, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10).In(zone).Add(123456 * time.Nanosecond), End: at(11).In(zone)},
		})
		require.NoError(t, err)
		assert.Equal(t, time.UTC, details.Start.Location())
		assert.True(t, details.Start.Equal(at(10)))
	})

	t.Run("requires authentication", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{Input: BookingInput{RoomID: "room-1", Start: at(10), End: at(11)}})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("reports field errors before anything else", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{Start: at(11), End: at(10), Purpose: strings.Repeat("x", 201), Participants: -2},
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "room_id")
		assert.Contains(t, vErr.FieldErrors, "purpose")
		assert.Contains(t, vErr.FieldErrors, "participants")
		assert.Zero(t, f.store.roomLookups)
		assert.Zero(t, f.store.conflictChecks)
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		f := newBookingFixture(t)

		for _, end := range []time.Time{at(10), at(9)} {
			_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
				Principal: alicePrincipal,
				Input:     BookingInput{RoomID: "room-1", Start: at(10), End: end},
			})
			assert.ErrorIs(t, err, ErrTimeWindowInvalid)
		}
		assert.Zero(t, f.store.conflictChecks)
	})

	t.Run("rejects a start in the past without touching the store", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: referenceNow.Add(-time.Minute), End: referenceNow.Add(time.Hour)},
		})
		assert.ErrorIs(t, err, ErrTimeWindowInvalid)
		assert.Zero(t, f.store.roomLookups)
		assert.Zero(t, f.store.conflictChecks)
		assert.Zero(t, f.store.writes)
	})

	t.Run("rejects missing and inactive rooms", func(t *testing.T) {
		f := newBookingFixture(t)

		for _, roomID := range []string{"room-404", "room-2"} {
			_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
				Principal: alicePrincipal,
				Input:     BookingInput{RoomID: roomID, Start: at(10), End: at(11)},
			})
			assert.ErrorIs(t, err, ErrRoomUnavailable, roomID)
		}
		assert.Zero(t, f.store.conflictChecks)
	})

	t.Run("capacity is checked before the active flag", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-2", Start: at(10), End: at(11), Participants: 11},
		})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.NotErrorIs(t, err, ErrRoomUnavailable)
		assert.Zero(t, f.store.conflictChecks)
	})

	t.Run("rejects participants above capacity", func(t *testing.T) {
		f := newBookingFixture(t)

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11), Participants: 6},
		})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		detail, ok := ErrorDetail(err)
		require.True(t, ok)
		assert.Contains(t, detail, "capacity is 4")
		assert.Zero(t, f.store.conflictChecks)
		assert.Zero(t, f.store.writes)
	})

	t.Run("rejects an overlapping interval", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("existing", "room-1", bobPrincipal.UserID, at(10), at(11))

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10.5), End: at(11.5)},
		})
		assert.ErrorIs(t, err, ErrBookingConflict)
		assert.Zero(t, f.store.writes)
		assert.Empty(t, f.notifier.events)
	})

	t.Run("admits adjacent intervals", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("existing", "room-1", bobPrincipal.UserID, at(10), at(11))

		for _, window := range [][2]time.Time{{at(11), at(12)}, {at(9), at(10)}} {
			_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
				Principal: alicePrincipal,
				Input:     BookingInput{RoomID: "room-1", Start: window[0], End: window[1]},
			})
			assert.NoError(t, err)
		}
	})

	t.Run("ignores cancelled bookings and other rooms", func(t *testing.T) {
		f := newBookingFixture(t)
		cancelled := f.seed("cancelled", "room-1", bobPrincipal.UserID, at(10), at(11))
		cancelled.Status = booking.StatusCancelled
		f.store.addBooking(cancelled)
		f.seed("elsewhere", "room-3", bobPrincipal.UserID, at(10), at(11))

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		assert.NoError(t, err)
	})

	t.Run("fails closed when the store errors", func(t *testing.T) {
		f := newBookingFixture(t)
		f.store.conflictErr = errors.New("disk on fire")

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Zero(t, f.store.writes)
	})

	t.Run("fails closed when the store is slow", func(t *testing.T) {
		f := newBookingFixture(t, booking.WithTimeout(20*time.Millisecond))
		f.store.delay = time.Second

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Zero(t, f.store.writes)
	})

	t.Run("swallows notifier failures", func(t *testing.T) {
		f := newBookingFixture(t)
		f.notifier.err = errors.New("broker down")

		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: alicePrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		assert.NoError(t, err)
		assert.Len(t, f.notifier.events, 3)
	})

	t.Run("admits exactly one of many concurrent overlapping requests", func(t *testing.T) {
		f := newBookingFixture(t)

		const callers = 20
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			admitted  int
			conflicts int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				start := at(10).Add(time.Duration(i) * time.Minute)
				_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
					Principal: alicePrincipal,
					Input:     BookingInput{RoomID: "room-1", Start: start, End: start.Add(time.Hour)},
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, ErrBookingConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, admitted)
		assert.Equal(t, callers-1, conflicts)
		assert.Equal(t, 1, f.store.writes)
	})
}

func TestBookingService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	f.seed("b-alice-1", "room-1", alicePrincipal.UserID, at(8), at(9))
	f.seed("b-alice-2", "room-1", alicePrincipal.UserID, at(12), at(13))
	f.seed("b-bob", "room-3", bobPrincipal.UserID, at(10), at(11))

	t.Run("owner can read", func(t *testing.T) {
		details, err := f.svc.GetBooking(ctx, alicePrincipal, "b-alice-1")
		require.NoError(t, err)
		assert.Equal(t, "Focus Pod", details.Room.Name)
		assert.Equal(t, "alice", details.User.Username)
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		_, err := f.svc.GetBooking(ctx, bobPrincipal, "b-alice-1")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin can read any booking", func(t *testing.T) {
		_, err := f.svc.GetBooking(ctx, adminPrincipal, "b-alice-1")
		assert.NoError(t, err)
	})

	t.Run("missing booking", func(t *testing.T) {
		_, err := f.svc.GetBooking(ctx, adminPrincipal, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("users list their own bookings newest start first", func(t *testing.T) {
		list, err := f.svc.ListBookings(ctx, alicePrincipal)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b-alice-2", list[0].ID)
		assert.Equal(t, "b-alice-1", list[1].ID)
	})

	t.Run("admin lists every booking", func(t *testing.T) {
		list, err := f.svc.ListBookings(ctx, adminPrincipal)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("anonymous callers are rejected", func(t *testing.T) {
		_, err := f.svc.ListBookings(ctx, Principal{})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestBookingService_UpdateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("moving within its own window excludes itself", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		details, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Start: ptr(at(10.5)), End: ptr(at(11.5))},
		})
		require.NoError(t, err)
		assert.True(t, details.Start.Equal(at(10.5)))
		assert.Equal(t, 1, f.store.conflictChecks)

		require.Len(t, f.notifier.events, 3)
		assert.Equal(t, notify.EventBookingUpdated, f.notifier.events[0].event.Type)
	})

	t.Run("moving onto another booking conflicts", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))
		f.seed("theirs", "room-1", bobPrincipal.UserID, at(12), at(13))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Start: ptr(at(12.5)), End: ptr(at(13.5))},
		})
		assert.ErrorIs(t, err, ErrBookingConflict)

		stored, err := f.store.GetBooking(ctx, "mine")
		require.NoError(t, err)
		assert.True(t, stored.Start.Equal(at(10)))
	})

	t.Run("changing only the purpose skips admission", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		details, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Purpose: ptr("retro")},
		})
		require.NoError(t, err)
		assert.Equal(t, "retro", details.Purpose)
		assert.Zero(t, f.store.conflictChecks)
	})

	t.Run("extending an ongoing booking keeps its past start", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("ongoing", "room-1", alicePrincipal.UserID, referenceNow.Add(-time.Hour), referenceNow.Add(time.Hour))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "ongoing",
			Patch:     BookingPatch{End: ptr(referenceNow.Add(2 * time.Hour))},
		})
		assert.NoError(t, err)
	})

	t.Run("moving the start into the past is rejected", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Start: ptr(referenceNow.Add(-time.Hour))},
		})
		assert.ErrorIs(t, err, ErrTimeWindowInvalid)
	})

	t.Run("participants are checked against capacity", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Participants: ptr(5)},
		})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("completed cannot be set explicitly", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Status: ptr("completed")},
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "status")
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		_, err := f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: bobPrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Purpose: ptr("hijack")},
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

	details, err := f.svc.CancelBooking(ctx, alicePrincipal, "mine")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, details.Status)
	assert.False(t, details.IsActive(referenceNow))

	require.Len(t, f.notifier.events, 3)
	for _, p := range f.notifier.events {
		assert.Equal(t, notify.EventBookingUpdated, p.event.Type)
		assert.Equal(t, "cancelled", p.event.Status)
	}

	t.Run("cancelled bookings are immutable", func(t *testing.T) {
		_, err := f.svc.CancelBooking(ctx, alicePrincipal, "mine")
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "status")

		_, err = f.svc.UpdateBooking(ctx, UpdateBookingParams{
			Principal: alicePrincipal,
			BookingID: "mine",
			Patch:     BookingPatch{Status: ptr("confirmed")},
		})
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("the slot becomes available again", func(t *testing.T) {
		_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
			Principal: bobPrincipal,
			Input:     BookingInput{RoomID: "room-1", Start: at(10), End: at(11)},
		})
		assert.NoError(t, err)
	})
}

func TestBookingService_DeleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes and subscribers are told", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		require.NoError(t, f.svc.DeleteBooking(ctx, alicePrincipal, "mine"))

		_, err := f.store.GetBooking(ctx, "mine")
		assert.Error(t, err)
		require.Len(t, f.notifier.events, 3)
		assert.Equal(t, notify.EventBookingDeleted, f.notifier.events[0].event.Type)
		assert.Equal(t, "Focus Pod", f.notifier.events[0].event.RoomName)
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		f := newBookingFixture(t)
		f.seed("mine", "room-1", alicePrincipal.UserID, at(10), at(11))

		assert.ErrorIs(t, f.svc.DeleteBooking(ctx, bobPrincipal, "mine"), ErrForbidden)
		assert.NoError(t, f.svc.DeleteBooking(ctx, adminPrincipal, "mine"))
	})

	t.Run("missing booking", func(t *testing.T) {
		f := newBookingFixture(t)
		assert.ErrorIs(t, f.svc.DeleteBooking(ctx, adminPrincipal, "nope"), ErrNotFound)
	})
}

func TestBookingService_DeactivatedRoom(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	f.seed("before", "room-1", alicePrincipal.UserID, at(10), at(11))

	rooms := NewRoomService(f.store, sequence("room"), fixedNow)
	require.NoError(t, rooms.DeleteRoom(ctx, adminPrincipal, "room-1"))

	_, err := f.svc.CreateBooking(ctx, CreateBookingParams{
		Principal: alicePrincipal,
		Input:     BookingInput{RoomID: "room-1", Start: at(12), End: at(13)},
	})
	assert.ErrorIs(t, err, ErrRoomUnavailable)

	details, err := f.svc.GetBooking(ctx, alicePrincipal, "before")
	require.NoError(t, err)
	assert.False(t, details.Room.IsActive)
}
