package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (f *failingSink) Set(context.Context, string, any) error {
	f.calls++
	return errors.New("upstream down")
}

func (f *failingSink) Remove(context.Context, string) error { return errors.New("upstream down") }

func TestKeys(t *testing.T) {
	assert.Equal(t, "buses/4/location", LocationKey(4))
	assert.Equal(t, "buses/4/status", StatusKey(4))
	assert.Equal(t, "shifts/9/occupancy", OccupancyKey(9))
	assert.Equal(t, "shifts/9/stops/2", StopKey(9, 2))

	assert.Equal(t, "buses/4", TopicOf("buses/4/location"))
	assert.Equal(t, "shifts/9", TopicOf("shifts/9/stops/2"))
	assert.Equal(t, "buses", TopicOf("buses"))

	assert.Equal(t, "ebus.shifts.9.stops.2", Subject("shifts/9/stops/2"))
	assert.Equal(t, "ebus.a_b._", Subject("a.b/ "))
}

func TestPublisherWritesFullValues(t *testing.T) {
	mem := NewMemory()
	p := NewPublisher(mem, nil)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	ctx := context.Background()

	p.Occupancy(ctx, 3, Occupancy{TotalSeats: 40, OccupiedSeats: 1, AvailableSeats: 39})
	p.Occupancy(ctx, 3, Occupancy{TotalSeats: 40, OccupiedSeats: 2, AvailableSeats: 38})
	p.StopETA(ctx, 3, 11, 7)
	p.BusLocation(ctx, 5, Location{Latitude: 29.2, Longitude: 79.5})

	v, ok := mem.Get(OccupancyKey(3))
	require.True(t, ok)
	assert.Equal(t, Occupancy{TotalSeats: 40, OccupiedSeats: 2, AvailableSeats: 38, UpdatedAt: 1_700_000_000_000}, v)

	v, ok = mem.Get(StopKey(3, 11))
	require.True(t, ok)
	assert.Equal(t, 7, v.(StopETA).ETA)

	v, _ = mem.Get(LocationKey(5))
	assert.Equal(t, int64(1_700_000_000_000), v.(Location).Timestamp)

	p.RemoveBus(ctx, 5)
	_, ok = mem.Get(LocationKey(5))
	assert.False(t, ok)
}

func TestPublisherSwallowsFailures(t *testing.T) {
	sink := &failingSink{}
	p := NewPublisher(sink, nil)
	assert.NotPanics(t, func() {
		p.BusStatus(context.Background(), 1, BusStatus{Status: "active"})
		p.RemoveBus(context.Background(), 1)
	})
	assert.Equal(t, 1, sink.calls)
}

func TestFanoutReachesEverySink(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	bad := &failingSink{}

	err := Fanout{a, bad, b}.Set(context.Background(), "buses/1/location", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	_, okA := a.Get("buses/1/location")
	_, okB := b.Get("buses/1/location")
	assert.True(t, okA)
	assert.True(t, okB)

	assert.NoError(t, Fanout{a, b}.Remove(context.Background(), "buses/1"))
	assert.Equal(t, 0, a.Len())
	assert.NoError(t, Fanout{}.Set(context.Background(), "x/1", 1))
}

func TestMemorySnapshotIsScopedToTopic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "buses/1/location", 1)
	_ = m.Set(ctx, "buses/1/status", 2)
	_ = m.Set(ctx, "buses/10/location", 3)

	snap := m.Snapshot("buses/1")
	require.Len(t, snap, 2)
	assert.Equal(t, "buses/1/location", snap[0].Key)
	assert.Equal(t, "buses/1/status", snap[1].Key)
}

func TestHubStreamsTopicToSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	ctx := context.Background()
	require.NoError(t, hub.Set(ctx, "buses/1/status", map[string]string{"status": "active"}))

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		hub.Serve(conn, "buses/1")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("buses/1") == 1 }, time.Second, 10*time.Millisecond)

	var snap Message
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "buses/1/status", snap.Key)

	require.NoError(t, hub.Set(ctx, "buses/2/location", "other bus"))
	require.NoError(t, hub.Set(ctx, "buses/1/location", map[string]float64{"latitude": 29.1}))

	// The initial write may also arrive live if it raced the registration.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var keys []string
	for len(keys) == 0 || keys[len(keys)-1] != "buses/1/location" {
		var live Message
		require.NoError(t, conn.ReadJSON(&live))
		keys = append(keys, live.Key)
	}
	assert.NotContains(t, keys, "buses/2/location")

	v, ok := hub.Latest("buses/2/location")
	require.True(t, ok)
	assert.Equal(t, "other bus", v)
}

func TestHubRejectsWritesAfterClose(t *testing.T) {
	hub := NewHub()
	hub.Close()
	assert.ErrorIs(t, hub.Set(context.Background(), "buses/1/location", 1), ErrHubClosed)
}
