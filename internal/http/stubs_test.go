package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/booking"
)

var referenceNow = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return referenceNow }

var (
	adminPrincipal = application.Principal{UserID: "admin-1", Username: "admin", IsAdmin: true}
	alicePrincipal = application.Principal{UserID: "user-alice", Username: "alice"}
)

type tokenAuthenticator map[string]application.Principal

func (a tokenAuthenticator) Authenticate(_ context.Context, token string) (application.Principal, error) {
	p, ok := a[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthenticated
	}
	return p, nil
}

var testTokens = tokenAuthenticator{
	"admin-token": adminPrincipal,
	"alice-token": alicePrincipal,
}

type roomServiceStub struct {
	mu        sync.Mutex
	rooms     []application.Room
	listCalls int
	getCalls  int
	created   []application.CreateRoomParams
	err       error
}

func (s *roomServiceStub) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return application.Room{}, s.err
	}
	if !params.Principal.IsAdmin {
		return application.Room{}, application.ErrForbidden
	}
	s.created = append(s.created, params)
	room := application.Room{ID: "room-new", Capacity: 1, IsActive: true, Type: application.RoomTypeWorkspace}
	if params.Input.Name != nil {
		room.Name = *params.Input.Name
	}
	if params.Input.Capacity != nil {
		room.Capacity = *params.Input.Capacity
	}
	s.rooms = append(s.rooms, room)
	return room, nil
}

func (s *roomServiceStub) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, room := range s.rooms {
		if room.ID == params.RoomID {
			if params.Input.Name != nil {
				s.rooms[i].Name = *params.Input.Name
			}
			return s.rooms[i], nil
		}
	}
	return application.Room{}, application.ErrNotFound
}

func (s *roomServiceStub) DeleteRoom(_ context.Context, _ application.Principal, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, room := range s.rooms {
		if room.ID == roomID {
			s.rooms[i].IsActive = false
			return nil
		}
	}
	return application.ErrNotFound
}

func (s *roomServiceStub) GetRoom(_ context.Context, roomID string) (application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	for _, room := range s.rooms {
		if room.ID == roomID {
			return room, nil
		}
	}
	return application.Room{}, application.ErrNotFound
}

func (s *roomServiceStub) ListRooms(context.Context) ([]application.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]application.Room(nil), s.rooms...), nil
}

type bookingServiceStub struct {
	mu        sync.Mutex
	bookings  map[string]application.BookingDetails
	listCalls map[string]int
	createErr error
	patches   []application.BookingPatch
}

func newBookingServiceStub() *bookingServiceStub {
	return &bookingServiceStub{
		bookings:  make(map[string]application.BookingDetails),
		listCalls: make(map[string]int),
	}
}

func (s *bookingServiceStub) CreateBooking(_ context.Context, params application.CreateBookingParams) (application.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return application.BookingDetails{}, s.createErr
	}
	details := application.BookingDetails{
		Booking: application.Booking{
			ID:           "booking-1",
			RoomID:       params.Input.RoomID,
			UserID:       params.Principal.UserID,
			Start:        params.Input.Start,
			End:          params.Input.End,
			Status:       booking.StatusConfirmed,
			Purpose:      params.Input.Purpose,
			Participants: params.Input.Participants,
		},
		Room: application.Room{ID: params.Input.RoomID, Name: "Focus Pod", Capacity: 4},
		User: application.User{ID: params.Principal.UserID, Username: params.Principal.Username},
	}
	s.bookings[details.ID] = details
	return details, nil
}

func (s *bookingServiceStub) GetBooking(_ context.Context, principal application.Principal, bookingID string) (application.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	details, ok := s.bookings[bookingID]
	if !ok {
		return application.BookingDetails{}, application.ErrNotFound
	}
	if details.UserID != principal.UserID && !principal.IsAdmin {
		return application.BookingDetails{}, application.ErrForbidden
	}
	return details, nil
}

func (s *bookingServiceStub) ListBookings(_ context.Context, principal application.Principal) ([]application.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[principal.UserID]++
	var out []application.BookingDetails
	for _, details := range s.bookings {
		if principal.IsAdmin || details.UserID == principal.UserID {
			out = append(out, details)
		}
	}
	return out, nil
}

func (s *bookingServiceStub) UpdateBooking(_ context.Context, params application.UpdateBookingParams) (application.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	details, ok := s.bookings[params.BookingID]
	if !ok {
		return application.BookingDetails{}, application.ErrNotFound
	}
	s.patches = append(s.patches, params.Patch)
	if params.Patch.Purpose != nil {
		details.Purpose = *params.Patch.Purpose
	}
	s.bookings[params.BookingID] = details
	return details, nil
}

func (s *bookingServiceStub) CancelBooking(_ context.Context, _ application.Principal, bookingID string) (application.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	details, ok := s.bookings[bookingID]
	if !ok {
		return application.BookingDetails{}, application.ErrNotFound
	}
	details.Status = booking.StatusCancelled
	s.bookings[bookingID] = details
	return details, nil
}

func (s *bookingServiceStub) DeleteBooking(_ context.Context, _ application.Principal, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return application.ErrNotFound
	}
	delete(s.bookings, bookingID)
	return nil
}

type userServiceStub struct {
	users      []application.User
	lastParams application.ListUsersParams
	deleteErr  error
}

func (s *userServiceStub) ListUsers(_ context.Context, params application.ListUsersParams) (application.UserPage, error) {
	s.lastParams = params
	if !params.Principal.IsAdmin {
		return application.UserPage{}, application.ErrForbidden
	}
	return application.UserPage{Users: s.users, Page: 1, Limit: 10, Total: len(s.users), TotalPages: 1}, nil
}

func (s *userServiceStub) GetUser(_ context.Context, _ application.Principal, userID string) (application.UserWithBookings, error) {
	for _, user := range s.users {
		if user.ID == userID {
			return application.UserWithBookings{User: user}, nil
		}
	}
	return application.UserWithBookings{}, application.ErrNotFound
}

func (s *userServiceStub) UpdateUser(_ context.Context, params application.UpdateUserParams) (application.User, error) {
	for _, user := range s.users {
		if user.ID == params.UserID {
			if params.Input.Role != nil {
				user.Role = application.Role(*params.Input.Role)
			}
			return user, nil
		}
	}
	return application.User{}, application.ErrNotFound
}

func (s *userServiceStub) DeleteUser(context.Context, application.Principal, string) error {
	return s.deleteErr
}

func (s *userServiceStub) Stats(context.Context, application.Principal) (application.UserStats, error) {
	return application.UserStats{TotalUsers: 3, AdminUsers: 1, RegularUsers: 2, RecentRegistrations: 2}, nil
}

type recordedRequest struct {
	method   string
	endpoint string
	status   int
}

type metricsRecorderStub struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *metricsRecorderStub) RecordHTTP(method, endpoint string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method: method, endpoint: endpoint, status: status})
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func doRequest(t *testing.T, handler http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload
}
