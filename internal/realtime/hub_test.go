package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubAttachDetachAfterShutdown(t *testing.T) {
	hub := NewHub(newFakeSource(), testRealtimeConfig())

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(ran)
	}()
	cancel()
	<-ran

	// A session tearing down after the hub stopped must not hang on the
	// registration channels.
	s := &Session{id: "s1", done: make(chan struct{})}
	finished := make(chan struct{})
	go func() {
		hub.Attach(s)
		hub.Detach(s)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("attach/detach blocked after hub shutdown")
	}
}
