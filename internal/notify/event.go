// Package notify fans booking lifecycle events out to subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType names a booking lifecycle event.
type EventType string

const (
	EventBookingCreated EventType = "booking_created"
	EventBookingUpdated EventType = "booking_updated"
	EventBookingDeleted EventType = "booking_deleted"
)

const (
	// GlobalChannel receives every event and is joined by all connections.
	GlobalChannel = "global"
	// AdminChannel is restricted to administrators.
	AdminChannel = "admin"

	roomChannelPrefix = "room:"
)

// RoomChannel returns the channel for events about roomID.
func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

// IsRoomChannel reports whether channel targets a single room.
func IsRoomChannel(channel string) bool {
	return strings.HasPrefix(channel, roomChannelPrefix) && len(channel) > len(roomChannelPrefix)
}

// ValidChannel reports whether channel is one of the known channel forms.
func ValidChannel(channel string) bool {
	return channel == GlobalChannel || channel == AdminChannel || IsRoomChannel(channel)
}

// Event is the payload delivered to subscribers. User is only populated on
// the admin channel.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	BookingID string    `json:"booking_id"`
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name,omitempty"`
	User      string    `json:"user,omitempty"`
	Status    string    `json:"status,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Timestamp time.Time `json:"timestamp"`
}

// Anonymous returns a copy of e without the requester.
func (e Event) Anonymous() Event {
	e.User = ""
	return e
}

// Sink delivers an event published on channel.
type Sink interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, channel string, event Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, channel string, event Event) error {
	return f(ctx, channel, event)
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

// Publish delivers event to all sinks, continuing past failures.
func (f Fanout) Publish(ctx context.Context, channel string, event Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, channel, event); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}
