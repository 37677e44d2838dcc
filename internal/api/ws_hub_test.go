package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/atmx/bet-consensus/internal/api"
	"github.com/atmx/bet-consensus/internal/dispatch"
	"github.com/atmx/bet-consensus/internal/model"
	"github.com/atmx/bet-consensus/internal/notify"
	"github.com/atmx/bet-consensus/internal/registry"
)

func startHub(t *testing.T) (*api.WSHub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := api.NewWSHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, hub *api.WSHub, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	want := hub.ClientCount() + 1
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) notify.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e notify.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return e
}

func TestWSHub_Broadcast(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, hub, srv)
	b := dial(t, hub, srv)

	e := notify.NewEvent(notify.EventBetProposed, 1)
	e.Prompt = "Lakers win"
	if err := hub.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		got := readEvent(t, conn)
		if got.ID != e.ID || got.Type != notify.EventBetProposed || got.Prompt != "Lakers win" {
			t.Errorf("unexpected event: %+v", got)
		}
	}
}

func TestWSHub_DispatcherEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv)

	d := dispatch.New(registry.New(), dispatch.WithPublisher(hub))
	ctx := context.Background()
	bet, err := d.Propose(ctx, "Lakers win", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	d.Vote(ctx, bet.ID, "alice", model.ChoiceDisagree)
	d.Finalize(ctx, bet.ID)

	want := []notify.EventType{notify.EventBetProposed, notify.EventVoteCast, notify.EventBetFinalized}
	for _, typ := range want {
		got := readEvent(t, conn)
		if got.Type != typ || got.BetID != bet.ID {
			t.Errorf("expected %s for bet %d, got %+v", typ, bet.ID, got)
		}
		if typ == notify.EventBetFinalized && got.Outcome != model.OutcomeDisagreed {
			t.Errorf("expected disagreed outcome, got %s", got.Outcome)
		}
	}
}

func TestWSHub_Disconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
