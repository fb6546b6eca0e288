package bus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got any
	_, err := b.Subscribe("test.event", func(e Event) error {
		got = e.Data()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("test.event", "tester", 123, nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != 123 {
		t.Fatalf("handler not called, got %v", got)
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := New()
	assert.NoError(t, b.Publish(NewEvent("nobody.listens", "tester", nil, nil)))
}

func TestDeliveryOrderAcrossEventsAndHandlers(t *testing.T) {
	b := New()
	var calls []string
	record := func(name string) EventHandler {
		return func(e Event) error {
			calls = append(calls, fmt.Sprintf("%s(%v)", name, e.Data()))
			return nil
		}
	}
	_, err := b.Subscribe("ev", record("A"))
	require.NoError(t, err)
	_, err = b.Subscribe("ev", record("B"))
	require.NoError(t, err)

	for _, e := range []string{"E1", "E2", "E3"} {
		require.NoError(t, b.Publish(NewEvent("ev", "test", e, nil)))
	}

	assert.Equal(t, []string{"A(E1)", "B(E1)", "A(E2)", "B(E2)", "A(E3)", "B(E3)"}, calls)
}

func TestDuplicateHandlerIsInvokedTwice(t *testing.T) {
	b := New()
	count := 0
	h := func(Event) error { count++; return nil }
	_, _ = b.Subscribe("dup", h)
	_, _ = b.Subscribe("dup", h)
	_ = b.Publish(NewEvent("dup", "test", nil, nil))
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, b.Subscribers("dup"))
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.Subscribe("x", func(Event) error { count++; return nil })
	require.NoError(t, err)

	_ = b.Publish(NewEvent("x", "test", nil, nil))
	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Unsubscribe(nil))
	_ = b.Publish(NewEvent("x", "test", nil, nil))

	assert.Equal(t, 1, count)
	assert.False(t, sub.IsActive())
	assert.Equal(t, 0, b.Subscribers("x"))
}

func TestCancelDuringDeliverySkipsCancelledHandler(t *testing.T) {
	b := New()
	var order []string
	var second Subscription
	_, _ = b.Subscribe("x", func(Event) error {
		order = append(order, "first")
		return second.Cancel()
	})
	second, _ = b.Subscribe("x", func(Event) error {
		order = append(order, "second")
		return nil
	})
	_ = b.Publish(NewEvent("x", "test", nil, nil))
	assert.Equal(t, []string{"first"}, order)
}

func TestFailingHandlersAreIsolated(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	reached := false
	_, _ = b.Subscribe("x", func(Event) error { return handlerErr })
	_, _ = b.Subscribe("x", func(Event) error { panic("kaboom") })
	_, _ = b.Subscribe("x", func(Event) error { reached = true; return nil })

	err := b.Publish(NewEvent("x", "src", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.True(t, reached, "handler after a panicking one must still run")
}

func TestPublishWithFilters(t *testing.T) {
	b := New()
	count := 0
	_, _ = b.Subscribe("x", func(Event) error { count++; return nil })
	obs := &testObserver{}
	b.AddObserver(obs)

	reject := func(Event) bool { return false }
	_ = b.PublishWithFilters(NewEvent("x", "src", nil, nil), reject)
	assert.Equal(t, 0, count)
	assert.EqualValues(t, 1, b.GetMetrics().DroppedByFilters)
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	m := b.GetMetrics()
	if m.Published != 0 || m.DeliveredHandlers != 0 {
		t.Fatalf("metrics should be zero without observers: %+v", m)
	}

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	m2 := b.GetMetrics()
	if m2.Published == 0 || m2.DeliveredHandlers == 0 {
		t.Fatalf("metrics should update with observer: %+v", m2)
	}
	if obs.publishCount == 0 || obs.deliveredCount == 0 {
		t.Fatalf("observer not called: %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	assert.Equal(t, 1, obs.publishCount)
}
