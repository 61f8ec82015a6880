package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

func TestEventForwarderDeliversInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	sink := func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Identifier)
		if e.Identifier == "FR5-002" {
			return errors.New("broker down")
		}
		return nil
	}

	d := events.NewInMemoryDispatcher()
	f := NewEventForwarder(sink, 8, nil)
	f.Start(d)

	ctx := context.Background()
	for _, ident := range []string{"FR5-001", "FR5-002", "FR5-003"} {
		require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventTicketCreated, Identifier: ident}))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.Stop(stopCtx))

	assert.Equal(t, []string{"FR5-001", "FR5-002", "FR5-003"}, got)
	delivered, dropped, failed := f.Stats()
	assert.Equal(t, int64(2), delivered)
	assert.Equal(t, int64(0), dropped)
	assert.Equal(t, int64(1), failed)

	assert.ErrorIs(t, f.Enqueue(ctx, events.Event{}), ErrStopped)
	require.NoError(t, f.Stop(stopCtx))
}

func TestEventForwarderDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	sink := func(context.Context, events.Event) error {
		<-release
		return nil
	}
	f := NewEventForwarder(sink, 1, nil)
	go f.run()

	ctx := context.Background()
	// the first event may already be held by the sink; keep pushing until one drops
	for i := 0; i < 4; i++ {
		require.NoError(t, f.Enqueue(ctx, events.Event{Type: events.EventTicketCreated}))
	}
	_, dropped, _ := f.Stats()
	assert.GreaterOrEqual(t, dropped, int64(2))

	close(release)
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.Stop(stopCtx))
}

func TestBackgroundWiresConsumers(t *testing.T) {
	idle := StartBackground(events.NewInMemoryDispatcher(), nil, nil, nil)
	require.NoError(t, idle.Shutdown(context.Background()))

	d := events.NewInMemoryDispatcher()
	notifier := service.NewNotificationService(d, nil, config.NotificationConfig{EmailFrom: "desk@example.com"})

	var (
		mu        sync.Mutex
		forwarded []events.EventType
	)
	forwarder := NewEventForwarder(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		forwarded = append(forwarded, e.Type)
		return nil
	}, 8, nil)

	bg := StartBackground(d, notifier, forwarder, nil)
	require.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventTicketResolved}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bg.Shutdown(ctx))

	emails, _ := notifier.Sent()
	assert.Equal(t, int64(1), emails)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{events.EventTicketResolved}, forwarded)
}
