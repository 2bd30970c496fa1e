package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker_DeliversToRoomSubscribers(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1, err := b.Subscribe(ctx, "r1")
	require.NoError(t, err)
	r2, err := b.Subscribe(ctx, "r2")
	require.NoError(t, err)

	e, err := New(AnnotationAdded, "r1", map[string]int{"content_id": 1})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, e))

	select {
	case got := <-r1:
		assert.Equal(t, AnnotationAdded, got.Type)
		assert.Equal(t, "r1", got.RoomID)
		assert.JSONEq(t, `{"content_id":1}`, string(got.Data))
	case <-time.After(time.Second):
		t.Fatal("subscriber of r1 did not receive the event")
	}

	select {
	case got := <-r2:
		t.Fatalf("subscriber of r2 received %v", got)
	default:
	}
}

func TestLocalBroker_ClosesChannelOnCancel(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "r1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}

	// Publishing after every listener left must not block or panic
	e, _ := New(RoomDeleted, "r1", nil)
	assert.NoError(t, b.Publish(context.Background(), e))
}

func TestLocalBroker_DropsWhenSubscriberLags(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "r1")
	require.NoError(t, err)

	e, _ := New(AnnotationAdded, "r1", nil)
	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, b.Publish(ctx, e))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestNew_OmitsEmptyData(t *testing.T) {
	e, err := New(RoomDeleted, "r1", nil)
	require.NoError(t, err)
	assert.Nil(t, e.Data)
	assert.False(t, e.At.IsZero())
}
