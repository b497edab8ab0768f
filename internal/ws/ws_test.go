package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

var open = time.Date(2024, 5, 10, 13, 30, 0, 0, time.UTC)

type fakeLoader struct {
	bars []market.Bar
}

func (f *fakeLoader) LoadBars(ticker, date string) ([]market.Bar, error) {
	if market.Root(ticker) != "SPX" || date != "2024-05-10" {
		return nil, data.ErrNotFound
	}
	return f.bars, nil
}

func (f *fakeLoader) LoadChain(ticker, date string) (*data.Chain, error) {
	return nil, data.ErrNotFound
}

func (f *fakeLoader) Exists(ticker, date string) bool { return true }

func (f *fakeLoader) Dates(ticker string) ([]string, error) { return []string{"2024-05-10"}, nil }

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) DownstreamMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg DownstreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg UpstreamMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStreamSessionToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	loader := &fakeLoader{bars: []market.Bar{
		{Timestamp: open, Close: 5200},
		{Timestamp: open.Add(time.Minute), Close: 5201},
	}}
	streamer := NewStreamer(hub, loader, data.NewIndexCache(data.CacheModeExhaust), 0, time.Hour, zap.NewNop())

	conn := dial(t, hub)
	if msg := read(t, conn); msg.Type != typeConnected || msg.ConnectionID == "" {
		t.Fatalf("expected connected message, got %+v", msg)
	}

	ack := uint64(7)
	group := GroupName("I:SPX", "2024-05-10")
	send(t, conn, UpstreamMessage{Type: typeSubscribe, Group: group, AckID: &ack})
	msg := read(t, conn)
	if msg.Type != typeAck || msg.AckID == nil || *msg.AckID != 7 || msg.Success == nil || !*msg.Success {
		t.Fatalf("expected successful ack, got %+v", msg)
	}

	for want := 0; want < 2; want++ {
		streamer.broadcastNext()
		msg := read(t, conn)
		if msg.Type != typeBar || msg.Frame == nil {
			t.Fatalf("step %d: expected bar, got %+v", want, msg)
		}
		if msg.Frame.Index != want || msg.Frame.Total != 2 || msg.Group != group {
			t.Errorf("step %d: unexpected frame %+v", want, msg.Frame)
		}
	}

	streamer.broadcastNext()
	if msg := read(t, conn); msg.Type != typeEnd {
		t.Fatalf("expected end message, got %+v", msg)
	}

	// a finished session stays quiet
	streamer.broadcastNext()
	send(t, conn, UpstreamMessage{Type: typePing})
	if msg := read(t, conn); msg.Type != typePong {
		t.Fatalf("expected pong after end, got %+v", msg)
	}
}

func TestSubscribeRejectsBadGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	conn := dial(t, hub)
	read(t, conn)

	ack := uint64(1)
	send(t, conn, UpstreamMessage{Type: typeSubscribe, Group: "SPX", AckID: &ack})
	msg := read(t, conn)
	if msg.Type != typeAck || msg.Success == nil || *msg.Success {
		t.Fatalf("expected failed ack, got %+v", msg)
	}
	if groups := hub.GetActiveGroups(); len(groups) != 0 {
		t.Errorf("unexpected active groups %v", groups)
	}
}

func TestParseGroup(t *testing.T) {
	root, date, err := ParseGroup("I:NDX/2024-05-10")
	if err != nil || root != "NDX" || date != "2024-05-10" {
		t.Errorf("got %q %q %v", root, date, err)
	}
	for _, bad := range []string{"NDX", "/2024-05-10", "NDX/05-10-2024"} {
		if _, _, err := ParseGroup(bad); err == nil {
			t.Errorf("ParseGroup(%q) should fail", bad)
		}
	}
}

func TestParseUpstreamMessage(t *testing.T) {
	if _, err := parseUpstreamMessage([]byte(`{"type":"ping"}`)); err != nil {
		t.Errorf("ping: %v", err)
	}
	if _, err := parseUpstreamMessage([]byte(`{"type":"publish"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := parseUpstreamMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}
