package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/interfaces"
)

func TestPublishSync_WaitsForAllHandlers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int32
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Subscribe(interfaces.EventHealthChecked, func(ctx context.Context, event interfaces.Event) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&calls, 1)
			return nil
		}))
	}

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventHealthChecked}))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPublishSync_ReportsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	require.NoError(t, svc.Subscribe(interfaces.EventJobCancelled, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler broke")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobCancelled})
	assert.Error(t, err)
}

func TestPublish_DeliversAsynchronously(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	done := make(chan interfaces.Event, 1)
	require.NoError(t, svc.Subscribe(interfaces.EventJobStateChanged, func(ctx context.Context, event interfaces.Event) error {
		done <- event
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobStateChanged, Payload: "x"}))

	select {
	case event := <-done:
		assert.Equal(t, "x", event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestUnsubscribe_RemovesOnlyThatHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var first, second int32
	firstHandler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&first, 1)
		return nil
	}
	secondHandler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&second, 1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventJobStateChanged, firstHandler))
	require.NoError(t, svc.Subscribe(interfaces.EventJobStateChanged, secondHandler))
	require.NoError(t, svc.Unsubscribe(interfaces.EventJobStateChanged, firstHandler))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobStateChanged}))

	assert.EqualValues(t, 0, atomic.LoadInt32(&first))
	assert.EqualValues(t, 1, atomic.LoadInt32(&second))
	assert.Error(t, svc.Unsubscribe(interfaces.EventJobStateChanged, firstHandler))
	assert.Error(t, svc.Subscribe(interfaces.EventJobStateChanged, nil))
}
