package realtime

import (
	"testing"
	"time"

	"workbridge_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransport() *PQTransport {
	return NewPQTransport("", config.RealtimeConfig{
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	})
}

func TestTransportDeliverFiltersUnwatchedTables(t *testing.T) {
	tr := testTransport()
	tr.Subscribe(TableNotifications)

	tr.deliver(`{"event_id":"e1","table":"audit_log","action":"INSERT","data":{"new":{"id":"a1"}}}`)
	assert.Empty(t, tr.events)

	tr.deliver(`{"event_id":"e2","table":"notifications","action":"INSERT","data":{"new":{"id":"n1"}}}`)
	require.Len(t, tr.events, 1)
	ev := <-tr.events
	assert.Equal(t, TableNotifications, ev.Table)
}

func TestTransportOverflowSignalsGap(t *testing.T) {
	tr := testTransport()
	tr.Subscribe(TableNotifications)

	for i := 0; i < cap(tr.events); i++ {
		tr.events <- RawEvent{}
	}

	// One more watched event: dropped, but the loss must surface as a gap
	// so sessions backfill instead of silently diverging.
	tr.deliver(`{"event_id":"e1","table":"notifications","action":"INSERT","data":{"new":{"id":"n1"}}}`)

	select {
	case <-tr.Gaps():
	default:
		t.Fatal("dropped event did not raise a gap")
	}
}

func TestTransportSubscribeRefcounts(t *testing.T) {
	tr := testTransport()

	tr.Subscribe(TableProposals)
	tr.Subscribe(TableProposals)
	tr.Unsubscribe(TableProposals)
	assert.True(t, tr.watched(TableProposals))

	tr.Unsubscribe(TableProposals)
	assert.False(t, tr.watched(TableProposals))

	// Unsubscribing a table nobody watches must not underflow.
	tr.Unsubscribe(TableProposals)
	assert.False(t, tr.watched(TableProposals))
}
