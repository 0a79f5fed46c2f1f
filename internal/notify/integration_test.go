package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tekrabyte/pos-sub000/internal/testutil"
)

func TestChannelAgainstBackend(t *testing.T) {
	backend := testutil.NewBackend(t)
	handler := &recordingHandler{}
	policy := FixedReconnectPolicy(20 * time.Millisecond)

	url, err := URLFromBase(backend.BaseURL(), testutil.OrdersPushPath)
	require.NoError(t, err)
	assert.Equal(t, backend.PushURL(), url)

	ch := NewChannel(handler, Options{
		URL:       url,
		Token:     func(context.Context) (string, error) { return "t", nil },
		Reconnect: &policy,
		Logger:    zaptest.NewLogger(t),
	})
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.Connect(context.Background()))
	require.Eventually(t, func() bool { return backend.Connections() == 1 }, time.Second, 5*time.Millisecond)

	backend.Broadcast(`{"type":"order_status_update","order_id":5,"status":"completed"}`)
	assert.Eventually(t, func() bool { _, u := handler.counts(); return u == 1 }, time.Second, 5*time.Millisecond)

	// Abrupt drop: one reconnect.
	backend.DropConnections()
	assert.Eventually(t, func() bool {
		return backend.PushDials() == 2 && ch.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	// Clean server close: stays down.
	require.Eventually(t, func() bool { return backend.Connections() == 1 }, time.Second, 5*time.Millisecond)
	backend.CloseConnections()
	assert.Eventually(t, func() bool { return ch.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, backend.PushDials())
	assert.False(t, ch.Stats().ReconnectPending)
}
