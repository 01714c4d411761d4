package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmoore/platune/pkg/platune"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBus()
	a := b.Subscribe()
	c := b.Subscribe()
	defer a.Unsubscribe()
	defer c.Unsubscribe()

	b.Publish(platune.PlayerEvent{Kind: platune.EventPause})

	evtA := <-a.Events
	evtC := <-c.Events
	assert.Equal(t, platune.EventPause, evtA.Kind)
	assert.Equal(t, platune.EventPause, evtC.Kind)
}

func TestUnsubscribeClosesEventsChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events
	assert.False(t, ok)
}

func TestPublishDropsForLaggedSubscriberInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < busCapacity+10; i++ {
		b.Publish(platune.PlayerEvent{Kind: platune.EventPause})
	}

	count := 0
	for {
		select {
		case _, ok := <-sub.Events:
			if !ok {
				return
			}
			count++
		default:
			require.LessOrEqual(t, count, busCapacity)
			return
		}
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBus()
	assert.NotPanics(t, func() {
		b.Publish(platune.PlayerEvent{Kind: platune.EventStop})
	})
}
