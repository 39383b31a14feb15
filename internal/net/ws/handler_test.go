package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	mineland "github.com/fed135/mine-land"
	"github.com/fed135/mine-land/internal/game"
	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := game.NewEngine(game.Config{
		Grid: grid.Config{
			Width:       16,
			Height:      16,
			SpawnCount:  1,
			SpawnMargin: 2,
			Seed:        "ws-test",
		},
		SessionSecret: []byte("ws-secret"),
	}, game.Deps{})
	hub := mineland.NewHub(engine, mineland.HubConfig{TickRate: 200})
	stop := make(chan struct{})
	go hub.Run(stop)

	handler := NewHandler(hub, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(func() {
		srv.Close()
		close(stop)
	})
	return srv
}

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) proto.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := proto.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, topic string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(proto.Envelope{Topic: topic, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// handshake joins the world over the socket and returns the credentials and
// the welcome payload.
func handshake(t *testing.T, conn *websocket.Conn, name string) (proto.SessionAssigned, proto.Welcome) {
	t.Helper()
	writeEnvelope(t, conn, proto.TopicPreferences, map[string]any{"name": name})

	env := readEnvelope(t, conn)
	if env.Topic != proto.TopicSessionAssigned {
		t.Fatalf("first frame must assign the session, got %q", env.Topic)
	}
	var creds proto.SessionAssigned
	if err := json.Unmarshal(env.Payload, &creds); err != nil {
		t.Fatalf("unmarshal credentials: %v", err)
	}

	env = readEnvelope(t, conn)
	if env.Topic != proto.TopicWelcome {
		t.Fatalf("second frame must be the welcome, got %q", env.Topic)
	}
	var welcome proto.Welcome
	if err := json.Unmarshal(env.Payload, &welcome); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}

	if env := readEnvelope(t, conn); env.Topic != proto.TopicPlayerUpdate {
		t.Fatalf("third frame must announce the join, got %q", env.Topic)
	}
	return creds, welcome
}

func TestWelcomeHandshake(t *testing.T) {
	srv := startTestServer(t)
	conn := dialTestServer(t, srv)

	creds, welcome := handshake(t, conn, "socketeer")
	if creds.SessionID == "" || creds.SessionToken == "" {
		t.Fatalf("handshake must hand out credentials: %+v", creds)
	}
	if welcome.Player.Username != "socketeer" {
		t.Fatalf("unexpected username %q", welcome.Player.Username)
	}
	if len(welcome.Viewport.Tiles) == 0 {
		t.Fatalf("welcome must carry the initial viewport")
	}
}

func TestActionOverSocket(t *testing.T) {
	srv := startTestServer(t)
	conn := dialTestServer(t, srv)
	creds, welcome := handshake(t, conn, "flipper")

	writeEnvelope(t, conn, proto.TopicAction, proto.ActionRequest{
		Action:       "flip",
		X:            welcome.Player.X + 1,
		Y:            welcome.Player.Y,
		SessionID:    creds.SessionID,
		SessionToken: creds.SessionToken,
	})

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		seen[readEnvelope(t, conn).Topic] = true
	}
	for _, topic := range []string{proto.TopicViewport, proto.TopicTileUpdate, proto.TopicPlayerUpdate, proto.TopicLeaderboard} {
		if !seen[topic] {
			t.Fatalf("accepted flip must produce %q, saw %v", topic, seen)
		}
	}
}

func TestMalformedFramesIgnored(t *testing.T) {
	srv := startTestServer(t)
	conn := dialTestServer(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":""}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection survives and a proper handshake still works.
	handshake(t, conn, "survivor")
}

func TestBroadcastReachesOtherClients(t *testing.T) {
	srv := startTestServer(t)
	first := dialTestServer(t, srv)
	handshake(t, first, "watcher")

	second := dialTestServer(t, srv)
	handshake(t, second, "newcomer")

	// The second join is broadcast, so the first client hears about it.
	env := readEnvelope(t, first)
	if env.Topic != proto.TopicPlayerUpdate {
		t.Fatalf("got %q, want a player update about the newcomer", env.Topic)
	}
	var update proto.PlayerUpdate
	if err := json.Unmarshal(env.Payload, &update); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if update.Player.Username != "newcomer" {
		t.Fatalf("update names %q, want the newcomer", update.Player.Username)
	}
}
