package ws

import (
	"testing"
	"time"

	"workbridge_backend/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTracksPresence(t *testing.T) {
	m := NewManager()
	go m.Run()

	c1 := &Client{ID: "c1", UserID: "u1", send: make(chan OutgoingFrame, sendCap), manager: m}
	c2 := &Client{ID: "c2", UserID: "u1", send: make(chan OutgoingFrame, sendCap), manager: m}

	m.register <- c1
	m.register <- c2
	require.Eventually(t, func() bool { return m.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.IsUserConnected("u1"))

	m.unregister <- c1
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.IsUserConnected("u1"), "second tab still open")

	m.unregister <- c2
	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.IsUserConnected("u1"))
}

func TestFramesAfterDisconnectAreDropped(t *testing.T) {
	m := NewManager()
	go m.Run()

	client := &Client{ID: "c1", UserID: "u1", send: make(chan OutgoingFrame, sendCap), manager: m}
	m.register <- client
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	m.unregister <- client
	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// The session loop only notices the close on its next select
	// iteration; frames it emits in the meantime must be swallowed, not
	// crash the process on the closed channel.
	client.SendConnectivity(false)
	client.SendToast(realtime.Toast{Title: "late"})
	client.SendUnreadCount(realtime.EntityNotification, 3)

	_, open := <-client.send
	assert.False(t, open, "send channel closed without delivering late frames")
}
