package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/fluxbpm/service/messaging/memory"
)

func TestRedisDispatcher(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	ctx := context.Background()
	dispatcher, err := NewRedisDispatcher(ctx, &redis.Options{Addr: server.Addr()}, "")
	require.NoError(t, err)
	defer dispatcher.Close()

	evt := NewEvent(&Context{EventType: ProcessStarted, ProcessInstanceID: "p1"}, map[string]interface{}{"k": "v"})
	require.NoError(t, dispatcher.Dispatch(ctx, evt))

	items, err := server.List(dispatcher.Key())
	require.NoError(t, err)
	require.Len(t, items, 1)
	decoded := &Event{}
	require.NoError(t, json.Unmarshal([]byte(items[0]), decoded))
	assert.Equal(t, ProcessStarted, decoded.Context.EventType)
	assert.Equal(t, "p1", decoded.Context.ProcessInstanceID)
	assert.Equal(t, "v", decoded.Data["k"])
}

func TestRedisDispatcher_Unreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = NewRedisDispatcher(context.Background(), &redis.Options{Addr: addr}, "events")
	assert.Error(t, err)
}

func TestPublisherListener(t *testing.T) {
	publisher := NewPublisher(memory.NewQueue[Event](memory.DefaultConfig()))
	var mux sync.Mutex
	var received []string
	listener := NewListener(publisher, func(evt *Event) {
		mux.Lock()
		defer mux.Unlock()
		received = append(received, evt.Context.EventType)
	}, nil)
	listener.Start(context.Background())
	defer listener.Stop()

	ctx := context.Background()
	for _, eventType := range []string{ProcessStarted, ActivityStarted, ProcessCompleted} {
		require.NoError(t, publisher.Dispatch(ctx, NewEvent(&Context{EventType: eventType}, nil)))
	}
	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(received) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{ProcessStarted, ActivityStarted, ProcessCompleted}, received)
}

func TestMulti(t *testing.T) {
	var calls int
	ok := DispatcherFunc(func(context.Context, *Event) error { calls++; return nil })
	failing := DispatcherFunc(func(context.Context, *Event) error { calls++; return errors.New("down") })

	err := Multi(ok, failing, Nop).Dispatch(context.Background(), NewEvent(&Context{EventType: JobDead}, nil))
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}
