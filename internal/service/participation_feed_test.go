package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/dto"
)

func receiveEvent(t *testing.T, ch <-chan dto.ParticipationSavedEvent) dto.ParticipationSavedEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "feed channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for participation event")
		return dto.ParticipationSavedEvent{}
	}
}

func TestParticipationFeedDeliversPerActivity(t *testing.T) {
	feed := NewParticipationFeed(nil, "", nil, "", testLogger())

	chess, stopChess := feed.Subscribe(1)
	defer stopChess()
	robotics, stopRobotics := feed.Subscribe(2)
	defer stopRobotics()

	feed.Publish(context.Background(), dto.ParticipationSavedEvent{ActivityID: 1, Room: 3, Upserted: 2})

	event := receiveEvent(t, chess)
	require.Equal(t, uint(1), event.ActivityID)
	require.Equal(t, 2, event.Upserted)
	require.NotEmpty(t, event.ID)
	require.False(t, event.SavedAt.IsZero())

	select {
	case <-robotics:
		t.Fatal("event leaked to another activity")
	default:
	}
}

func TestParticipationFeedUnsubscribeClosesChannel(t *testing.T) {
	feed := NewParticipationFeed(nil, "", nil, "", testLogger())

	ch, stop := feed.Subscribe(1)
	stop()
	stop()

	_, ok := <-ch
	require.False(t, ok)
}

func TestParticipationFeedRelaysThroughRedis(t *testing.T) {
	server := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewParticipationFeed(nil, "", newClient(), "participation:feed", testLogger())
	receiver := NewParticipationFeed(nil, "", newClient(), "participation:feed", testLogger())
	require.NoError(t, sender.Start(ctx))
	require.NoError(t, receiver.Start(ctx))

	local, stopLocal := sender.Subscribe(5)
	defer stopLocal()
	remote, stopRemote := receiver.Subscribe(5)
	defer stopRemote()

	sender.Publish(ctx, dto.ParticipationSavedEvent{ActivityID: 5, Room: 2, Deleted: 1})

	require.Equal(t, 1, receiveEvent(t, remote).Deleted)
	require.Equal(t, 1, receiveEvent(t, local).Deleted)

	// The sender ignores its own echo from redis.
	select {
	case <-local:
		t.Fatal("sender delivered its own event twice")
	case <-time.After(100 * time.Millisecond):
	}
}
