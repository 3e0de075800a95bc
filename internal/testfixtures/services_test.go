package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/coworking-booking/internal/application"
)

type capturingRoomRepo struct {
	created application.Room
}

func (c *capturingRoomRepo) CreateRoom(_ context.Context, room application.Room) (application.Room, error) {
	c.created = room
	return room, nil
}

func (c *capturingRoomRepo) GetRoom(context.Context, string) (application.Room, error) {
	return application.Room{}, application.ErrNotFound
}

func (c *capturingRoomRepo) UpdateRoom(_ context.Context, room application.Room) (application.Room, error) {
	return room, nil
}

func (c *capturingRoomRepo) ListRooms(context.Context, bool) ([]application.Room, error) {
	return nil, nil
}

func TestServiceFactoryNewRoomService(t *testing.T) {
	t.Parallel()

	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("room")))
	repo := &capturingRoomRepo{}
	svc := factory.NewRoomService(repo)

	name := "Focus Pod"
	capacity := 4
	admin := NewUserFixture(WithUserAdmin()).Principal()
	room, err := svc.CreateRoom(context.Background(), application.CreateRoomParams{
		Principal: admin,
		Input:     application.RoomInput{Name: &name, Capacity: &capacity},
	})
	require.NoError(t, err)

	assert.Equal(t, "room-001", room.ID)
	assert.Equal(t, room.ID, repo.created.ID)
	assert.True(t, room.CreatedAt.Equal(factory.Clock.Now()))
}

func TestServiceFactoryTokensFollowClock(t *testing.T) {
	t.Parallel()

	factory := NewServiceFactory()
	user := NewUserFixture().Application()
	token, expires, err := factory.Tokens().Issue(user)
	require.NoError(t, err)
	assert.Equal(t, factory.Clock.Now().Add(time.Hour), expires)

	claims, err := factory.Tokens().Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
}
