package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/rostrum/internal/debate"
	"github.com/zulandar/rostrum/internal/judge"
	"github.com/zulandar/rostrum/internal/models"
	"github.com/zulandar/rostrum/internal/token"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubGateway returns a fixed verdict.
type stubGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *stubGateway) Judge(ctx context.Context, transcript judge.Transcript) (*judge.Verdict, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return &judge.Verdict{
		Winner: models.WinnerA,
		SideA:  judge.SideResult{Score: 8, Reasoning: "stronger case"},
		SideB:  judge.SideResult{Score: 6, Reasoning: "weaker close"},
	}, nil
}

type hubEnv struct {
	hub    *Hub
	orch   *debate.Orchestrator
	server *httptest.Server
}

// newHubEnv wires a hub in front of a real orchestrator and exposes it
// over an httptest server. The handler trusts the user query parameter;
// transport-token auth belongs to the HTTP layer, not the hub.
func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.DebateSession{}, &models.DebateTurn{}, &models.InvitationToken{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	tokens, err := token.NewService(token.ServiceOpts{
		DB:      gdb,
		Secret:  "test-secret",
		BaseURL: "http://localhost:8080",
	})
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}
	orch, err := debate.New(debate.Opts{DB: gdb, Tokens: tokens, Gateway: &stubGateway{}})
	if err != nil {
		t.Fatalf("debate.New: %v", err)
	}
	h := New(Opts{Orchestrator: orch, Heartbeat: 50 * time.Millisecond})

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.ServeConn(conn, r.URL.Query().Get("user"))
	}))
	t.Cleanup(server.Close)

	return &hubEnv{hub: h, orch: orch, server: server}
}

func (e *hubEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *hubEnv) createRunning(t *testing.T) string {
	t.Helper()
	state, err := e.orch.CreateSession(context.Background(), debate.CreateParams{
		Topic:     "Should remote work be the default?",
		Rounds:    2,
		DebaterA:  "alice",
		DebaterB:  "bob",
		AutoJudge: true,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return state.ID
}

// readUntil reads messages, skipping heartbeats, until one of the wanted
// type arrives or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg outbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
		if msg.Type == MsgHeartbeat {
			continue
		}
		if msg.Type == MsgError && msgType != MsgError {
			t.Fatalf("waiting for %s, got error: %s", msgType, msg.Message)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg inbound) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func TestJoinDeliversSnapshot(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	conn := env.dial(t, "alice")
	send(t, conn, inbound{Type: MsgJoinSession, SessionID: id})

	msg := readUntil(t, conn, MsgSessionState)
	if msg.Data == nil || msg.Data.ID != id {
		t.Fatalf("snapshot = %+v, want session %s", msg.Data, id)
	}
	if msg.Data.Status != models.StatusRunning {
		t.Errorf("Status = %q, want running", msg.Data.Status)
	}
	if got := env.hub.RoomSize(id); got != 1 {
		t.Errorf("RoomSize = %d, want 1", got)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	env := newHubEnv(t)

	conn := env.dial(t, "alice")
	send(t, conn, inbound{Type: MsgJoinSession, SessionID: "no-such-session"})

	msg := readUntil(t, conn, MsgError)
	if msg.Message != "session not found" {
		t.Errorf("Message = %q, want session not found", msg.Message)
	}
}

func TestBroadcastFansOutToRoom(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	alice := env.dial(t, "alice")
	bob := env.dial(t, "bob")
	observer := env.dial(t, "carol")
	for _, conn := range []*websocket.Conn{alice, bob, observer} {
		send(t, conn, inbound{Type: MsgJoinSession, SessionID: id})
		readUntil(t, conn, MsgSessionState)
	}

	send(t, alice, inbound{
		Type:      MsgSubmitArgument,
		SessionID: id,
		Argument:  "opening statement with enough substance to count",
	})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob, "observer": observer} {
		msg := readUntil(t, conn, MsgSessionState)
		if len(msg.Data.Turns) != 1 {
			t.Errorf("%s saw %d turns, want 1", name, len(msg.Data.Turns))
		}
		if msg.Data.NextSpeaker != models.SpeakerB {
			t.Errorf("%s saw NextSpeaker %q, want B", name, msg.Data.NextSpeaker)
		}
	}

	// The turn change also announces whose turn is next.
	turn := readUntil(t, bob, MsgYourTurn)
	if turn.Speaker != models.SpeakerB {
		t.Errorf("YOUR_TURN speaker = %q, want B", turn.Speaker)
	}
	if turn.OrderIndex == nil || *turn.OrderIndex != 1 {
		t.Errorf("YOUR_TURN orderIndex = %v, want 1", turn.OrderIndex)
	}
}

func TestSubmitOutOfTurnGetsError(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	bob := env.dial(t, "bob")
	send(t, bob, inbound{Type: MsgJoinSession, SessionID: id})
	readUntil(t, bob, MsgSessionState)

	send(t, bob, inbound{
		Type:      MsgSubmitArgument,
		SessionID: id,
		Argument:  "trying to speak before my turn has come around",
	})

	msg := readUntil(t, bob, MsgError)
	if !strings.Contains(msg.Message, "not your turn") {
		t.Errorf("Message = %q, want not-your-turn rejection", msg.Message)
	}
}

func TestWinnerPushedWhenFinished(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	alice := env.dial(t, "alice")
	send(t, alice, inbound{Type: MsgJoinSession, SessionID: id})
	readUntil(t, alice, MsgSessionState)

	ctx := context.Background()
	users := []string{"alice", "bob"}
	for i := 0; i < 4; i++ {
		if _, err := env.orch.SubmitArgument(ctx, id, users[i%2], "a sufficiently long argument for this round"); err != nil {
			t.Fatalf("SubmitArgument %d: %v", i, err)
		}
	}

	msg := readUntil(t, alice, MsgWinner)
	if msg.Winner != models.WinnerA {
		t.Errorf("Winner = %q, want A", msg.Winner)
	}
	if len(msg.JudgeResult) == 0 {
		t.Error("JudgeResult empty, want verdict JSON")
	}
}

func TestRequestStateResyncsSingleSocket(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	conn := env.dial(t, "carol")
	// No join: an explicit resync works without room membership.
	send(t, conn, inbound{Type: MsgRequestState, SessionID: id})

	msg := readUntil(t, conn, MsgSessionState)
	if msg.Data.ID != id {
		t.Errorf("snapshot ID = %q, want %s", msg.Data.ID, id)
	}
	if got := env.hub.RoomSize(id); got != 0 {
		t.Errorf("RoomSize = %d, want 0", got)
	}
}

func TestPingAndUnknownType(t *testing.T) {
	env := newHubEnv(t)

	conn := env.dial(t, "alice")
	send(t, conn, inbound{Type: MsgPing})
	readUntil(t, conn, MsgHeartbeat)

	send(t, conn, inbound{Type: "BOGUS"})
	msg := readUntil(t, conn, MsgError)
	if msg.Message != "unknown message type" {
		t.Errorf("Message = %q, want unknown message type", msg.Message)
	}
}

func TestDisconnectLeavesRoom(t *testing.T) {
	env := newHubEnv(t)
	id := env.createRunning(t)

	conn := env.dial(t, "alice")
	send(t, conn, inbound{Type: MsgJoinSession, SessionID: id})
	readUntil(t, conn, MsgSessionState)
	if got := env.hub.RoomSize(id); got != 1 {
		t.Fatalf("RoomSize = %d, want 1", got)
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.RoomSize(id) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("RoomSize still %d after disconnect", env.hub.RoomSize(id))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReconnectPolicyDelay(t *testing.T) {
	policy := ReconnectPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 8,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDialerStopsAfterClose(t *testing.T) {
	dialer := &Dialer{URL: "ws://127.0.0.1:1/ws"}
	dialer.Close()

	_, err := dialer.Dial(context.Background())
	if err != ErrDisconnectRequested {
		t.Errorf("Dial after Close = %v, want ErrDisconnectRequested", err)
	}
}

func TestDialerExhaustsAttempts(t *testing.T) {
	dialer := &Dialer{
		URL: "ws://127.0.0.1:1/ws",
		Policy: ReconnectPolicy{
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			MaxAttempts: 3,
		},
	}

	_, err := dialer.Dial(context.Background())
	if err == nil {
		t.Fatal("Dial succeeded against a dead endpoint")
	}
	if !strings.Contains(err.Error(), "all 3 attempts failed") {
		t.Errorf("err = %v, want attempt-exhaustion failure", err)
	}
}

func TestDialerRecoversWhenServerReturns(t *testing.T) {
	env := newHubEnv(t)

	dialer := &Dialer{
		URL: "ws" + strings.TrimPrefix(env.server.URL, "http") + "?user=alice",
		Policy: ReconnectPolicy{
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			MaxAttempts: 5,
		},
	}

	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}
