package chanutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndRecvDeliverPayload(t *testing.T) {
	tx, rx := New[string, int](1)
	tx.Send("hello")

	got, ok := rx.Recv()
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestGetResponseWaitsForRespond(t *testing.T) {
	tx, rx := New[string, int](1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, ok := rx.Recv()
		if !ok {
			return
		}
		rx.Respond(len(msg))
	}()

	resp, err := tx.GetResponse(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, 4, resp)
	<-done
}

func TestGetResponseTimesOutWhenNobodyResponds(t *testing.T) {
	tx, _ := New[string, int](1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tx.GetResponse(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTryRecvNonBlockingOnEmptyChannel(t *testing.T) {
	_, rx := New[string, int](1)
	_, ok := rx.TryRecv()
	assert.False(t, ok)
}

func TestTrySendReportsFullChannel(t *testing.T) {
	tx, _ := New[int, int](1)
	assert.True(t, tx.TrySend(1))
	assert.False(t, tx.TrySend(2))
}

func TestRespondIsNoOpForFireAndForgetSend(t *testing.T) {
	tx, rx := New[string, int](1)
	tx.Send("no reply expected")

	_, ok := rx.Recv()
	require.True(t, ok)

	assert.NotPanics(t, func() {
		rx.Respond(99)
	})
}

func TestRecvReturnsFalseAfterSenderChannelClosed(t *testing.T) {
	tx, rx := New[string, int](1)
	_ = tx
	close(tx.main)

	_, ok := rx.Recv()
	assert.False(t, ok)
}
