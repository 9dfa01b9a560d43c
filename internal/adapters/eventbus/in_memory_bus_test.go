package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

func TestPublish_FansOutToAllTopicSubscribers(t *testing.T) {
	nopLogger := zerolog.Nop()
	bus := NewInMemoryBus(&nopLogger)

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	var received []domain.TransitionEvent

	handler := func(ctx context.Context, event ports.Event) error {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event.Data.(domain.TransitionEvent))
		return nil
	}
	bus.Subscribe(domain.TopicTransition, handler)
	bus.Subscribe(domain.TopicTransition, handler)
	bus.Subscribe("other.topic", func(ctx context.Context, event ports.Event) error {
		t.Error("handler on another topic must not fire")
		return nil
	})

	event := domain.TransitionEvent{
		UserID:  "user-1",
		From:    domain.StageIntro,
		To:      domain.StagePostTrigger,
		Trigger: "trigger",
		At:      time.Now(),
	}
	require.NoError(t, bus.Publish(context.Background(), domain.TopicTransition, event))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribers did not receive the event in time")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "user-1", received[0].UserID)
}

func TestPublish_NoSubscribersIsANoOp(t *testing.T) {
	nopLogger := zerolog.Nop()
	bus := NewInMemoryBus(&nopLogger)
	assert.NoError(t, bus.Publish(context.Background(), "silent.topic", struct{}{}))
}
