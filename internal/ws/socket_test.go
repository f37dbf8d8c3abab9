package ws

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/cavetalk/internal/config"
	"github.com/kiliankoe/cavetalk/internal/content"
	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
	"github.com/kiliankoe/cavetalk/internal/timer"
)

type emitted struct {
	room    string
	event   string
	payload any
}

// fakeConn implements the parts of socketio.Conn the handlers use.
type fakeConn struct {
	socketio.Conn
	id string

	mu     sync.Mutex
	ctx    any
	events []emitted
	joined map[string]bool
}

func newConn(id string) *fakeConn {
	return &fakeConn{id: id, joined: map[string]bool{}}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Context() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *fakeConn) SetContext(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = v
}

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload any
	if len(v) > 0 {
		payload = v[0]
	}
	c.events = append(c.events, emitted{event: event, payload: payload})
}

func (c *fakeConn) Join(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[room] = true
}

func (c *fakeConn) Leave(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, room)
}

func (c *fakeConn) got(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (b *fakeBroadcaster) BroadcastToRoom(_, room, event string, args ...interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	b.events = append(b.events, emitted{room: room, event: event, payload: payload})
	return true
}

func (b *fakeBroadcaster) got(event string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, e := range b.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func newTestServer(t *testing.T, interval time.Duration) (*Server, *fakeBroadcaster, config.Config) {
	t.Helper()
	packs, err := content.NewRepository()
	require.NoError(t, err)
	timers := timer.New(timer.WithInterval(interval))
	t.Cleanup(timers.StopAll)

	rooms := room.NewManager(room.NewMemoryRepository(), packs,
		room.WithReleaser(timers),
		room.WithDefaults(game.Config{TurnDurationSeconds: 2, RoundsPerTeam: 1}),
		room.WithEngineOptions(game.WithSeed(11)),
	)
	cfg := config.Config{
		CORSOrigin:    "*",
		ExportEnabled: true,
		ExportFile:    filepath.Join(t.TempDir(), "results.txt"),
	}
	srv := New(rooms, timers, cfg)
	b := &fakeBroadcaster{}
	srv.io = b
	return srv, b, cfg
}

// startedGame puts host on the first team and guest on the second and starts
// the game.
func startedGame(t *testing.T, srv *Server) (code string, host, guest *fakeConn) {
	t.Helper()
	host, guest = newConn("sid-host"), newConn("sid-guest")

	ack := srv.onRoomCreate(host, createPayload{PlayerName: "Alice"})
	require.NotContains(t, ack, "error")
	code = ack["roomCode"].(string)
	hostID := ack["playerId"].(string)

	ack = srv.onRoomJoin(guest, joinPayload{RoomCode: strings.ToLower(code), PlayerName: "Bob"})
	require.NotContains(t, ack, "error")
	guestID := ack["playerId"].(string)

	snap, err := srv.rooms.Snapshot(code)
	require.NoError(t, err)
	require.NotContains(t, srv.onTeamAssign(host, assignPayload{PlayerID: hostID, TeamID: snap.Teams[0].ID}), "error")
	require.NotContains(t, srv.onTeamAssign(host, assignPayload{PlayerID: guestID, TeamID: snap.Teams[1].ID}), "error")

	require.NotContains(t, srv.onGameStart(host, startPayload{}), "error")
	return code, host, guest
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: room ABC", game.ErrNotFound), "not_found"},
		{fmt.Errorf("%w: no active turn", game.ErrInvalidState), "invalid_state"},
		{fmt.Errorf("%w: host only", game.ErrForbidden), "forbidden"},
		{fmt.Errorf("%w: name is required", game.ErrValidation), "validation"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, errorCode(tc.err), tc.err.Error())
	}
	assert.Equal(t, "internal error", errorResponse(errors.New("db password leaked")).Message)
}

func TestCreateAndJoin(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	host, guest := newConn("a"), newConn("b")

	ack := srv.onRoomCreate(host, createPayload{PlayerName: "Alice"})
	code := ack["roomCode"].(string)
	require.Len(t, host.got(EventRoomCreated), 1)
	assert.True(t, host.joined[code])
	assert.Equal(t, code, connCtx(host).Code)

	srv.onRoomJoin(guest, joinPayload{RoomCode: code, PlayerName: "Bob"})
	require.Len(t, guest.got(EventRoomJoined), 1)
	joined := b.got(EventPlayerJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Bob", joined[0].(map[string]any)["player"].(game.Player).Name)

	states := b.got(EventRoomState)
	require.NotEmpty(t, states)
	assert.Len(t, states[len(states)-1].(RoomStateResponse).Players, 2)
}

func TestErrorsReachTheCaller(t *testing.T) {
	srv, _, _ := newTestServer(t, time.Hour)
	c := newConn("a")

	ack := srv.onRoomJoin(c, joinPayload{RoomCode: "ZZZZZZ", PlayerName: "Bob"})
	require.Contains(t, ack, "error")
	errs := c.got(EventRoomError)
	require.Len(t, errs, 1)
	assert.Equal(t, "not_found", errs[0].(ErrorResponse).Code)

	srv.onRoomCreate(c, createPayload{PlayerName: "  "})
	errs = c.got(EventRoomError)
	assert.Equal(t, "validation", errs[len(errs)-1].(ErrorResponse).Code)
}

func TestOnlyHostStartsGame(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	host, guest := newConn("a"), newConn("b")
	code := srv.onRoomCreate(host, createPayload{PlayerName: "Alice"})["roomCode"].(string)
	srv.onRoomJoin(guest, joinPayload{RoomCode: code, PlayerName: "Bob"})

	srv.onGameStart(guest, startPayload{RoomCode: code})
	errs := guest.got(EventRoomError)
	require.Len(t, errs, 1)
	assert.Equal(t, "forbidden", errs[0].(ErrorResponse).Code)
	assert.Empty(t, b.got(EventGameStarted))
}

func TestTurnCardGoesToPoetOnly(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	code, host, guest := startedGame(t, srv)

	require.NotContains(t, srv.onTurnStart(guest, roomPayload{RoomCode: code}), "error")

	started := b.got(EventTurnStarted)
	require.Len(t, started, 1)
	info := started[0].(TurnStartedResponse)
	assert.Equal(t, 2, info.TimerDuration)
	assert.Equal(t, connCtx(host).PlayerID, info.Turn.PoetID)
	assert.Equal(t, connCtx(guest).PlayerID, info.Turn.JudgeID)

	cards := host.got(EventTurnCard)
	require.Len(t, cards, 1)
	assert.NotEmpty(t, cards[0].(map[string]any)["card"].(game.Card).EasyWord)
	assert.Empty(t, guest.got(EventTurnCard))
	assert.Empty(t, b.got(EventTurnCard), "the card is never broadcast")

	states := b.got(EventGameState)
	last := states[len(states)-1].(GameStateResponse)
	assert.Equal(t, game.StateTurnActive, last.State)
	require.NotNil(t, last.TimerRemaining)
	assert.Equal(t, 2, *last.TimerRemaining)
}

func TestScoringEvents(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	code, host, guest := startedGame(t, srv)
	srv.onTurnStart(host, roomPayload{RoomCode: code})

	ack := srv.onCorrectHard(guest, roomPayload{})
	assert.Equal(t, 3, ack["points"])
	srv.onCorrectEasy(guest, roomPayload{})
	srv.onSkip(guest, roomPayload{})
	srv.onNo(guest, roomPayload{})

	scores := b.got(EventTurnScore)
	require.Len(t, scores, 4)
	assert.Equal(t, ScoreResponse{Points: 3, TotalScore: 3, Type: "hard"}, scores[0])
	assert.Equal(t, ScoreResponse{Points: 1, TotalScore: 4, Type: "easy"}, scores[1])
	assert.Equal(t, ScoreResponse{Points: -1, TotalScore: 3, Type: "skip"}, scores[2])
	assert.Equal(t, ScoreResponse{Points: -1, TotalScore: 2, Type: "penalty"}, scores[3])

	var messages []string
	for _, f := range b.got(EventFeedback) {
		messages = append(messages, f.(FeedbackResponse).Message)
	}
	assert.Equal(t, []string{"Correct! +3 points", "Correct! +1 point", "Card skipped! -1 point", "NO! -1 point"}, messages)

	revealed := b.got(EventCardRevealed)
	require.Len(t, revealed, 4)
	assert.Equal(t, "no", revealed[3].(CardRevealedResponse).Reason)
	assert.Len(t, host.got(EventTurnCard), 5, "poet gets every new card")
	assert.Empty(t, guest.got(EventTurnCard))
}

func TestTimerExpiryEndsTurnsAndGame(t *testing.T) {
	srv, b, cfg := newTestServer(t, 2*time.Millisecond)
	code, host, _ := startedGame(t, srv)

	srv.onTurnStart(host, roomPayload{RoomCode: code})
	require.Eventually(t, func() bool { return len(b.got(EventTurnEnded)) == 1 }, 2*time.Second, 5*time.Millisecond)
	ended := b.got(EventTurnEnded)[0].(TurnEndedResponse)
	assert.Equal(t, game.TurnEndTimeUp, ended.Reason)
	assert.NotEmpty(t, b.got(EventTurnTimer))

	srv.onTurnStart(host, roomPayload{RoomCode: code})
	require.Eventually(t, func() bool { return len(b.got(EventGameEnded)) == 1 }, 2*time.Second, 5*time.Millisecond)

	sum := b.got(EventGameEnded)[0].(GameEndedResponse)
	assert.Equal(t, 2, sum.TotalRounds)
	assert.Len(t, sum.Teams, 2)

	over, err := srv.rooms.IsGameOver(code)
	require.NoError(t, err)
	assert.True(t, over)
	assert.Zero(t, srv.timers.Active())

	raw, err := os.ReadFile(cfg.ExportFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Room "+code)
}

func TestStaleExpiryIsIgnored(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	code, host, _ := startedGame(t, srv)
	srv.onTurnStart(host, roomPayload{RoomCode: code})

	srv.onTimerExpired(code, 7)
	assert.Empty(t, b.got(EventTurnEnded))

	snap, err := srv.rooms.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, game.StateTurnActive, snap.State)
}

func TestDisconnectAndReconnect(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	code, host, guest := startedGame(t, srv)
	guestID := connCtx(guest).PlayerID

	srv.onDisconnect(guest, "transport close")
	gone := b.got(EventPlayerDisconnected)
	require.Len(t, gone, 1)
	assert.Equal(t, guestID, gone[0].(map[string]any)["playerId"])
	snap, _ := srv.rooms.Snapshot(code)
	p, _ := snap.Player(guestID)
	assert.False(t, p.IsConnected)

	again := newConn("sid-guest-2")
	require.NotContains(t, srv.onReconnect(again, reconnectPayload{RoomCode: code, PlayerID: guestID}), "error")
	assert.Len(t, b.got(EventPlayerReconnected), 1)
	snap, _ = srv.rooms.Snapshot(code)
	p, _ = snap.Player(guestID)
	assert.True(t, p.IsConnected)

	tab := newConn("sid-host-2")
	srv.onReconnect(tab, reconnectPayload{RoomCode: code, PlayerID: connCtx(host).PlayerID})
	srv.onDisconnect(host, "transport close")
	assert.Len(t, b.got(EventPlayerDisconnected), 1, "the other tab keeps the host connected")

	srv.onReconnect(newConn("x"), reconnectPayload{RoomCode: code, PlayerID: "nobody"})
	assert.Len(t, b.got(EventPlayerReconnected), 2)
}

func TestLeaveBroadcasts(t *testing.T) {
	srv, b, _ := newTestServer(t, time.Hour)
	host, guest := newConn("a"), newConn("b")
	code := srv.onRoomCreate(host, createPayload{PlayerName: "Alice"})["roomCode"].(string)
	srv.onRoomJoin(guest, joinPayload{RoomCode: code, PlayerName: "Bob"})

	require.NotContains(t, srv.onRoomLeave(guest, roomPayload{}), "error")
	assert.Len(t, b.got(EventPlayerLeft), 1)
	assert.False(t, guest.joined[code])

	srv.onRoomLeave(host, roomPayload{RoomCode: code})
	_, err := srv.rooms.Snapshot(code)
	assert.ErrorIs(t, err, game.ErrNotFound)

	srv.onRoomLeave(newConn("c"), roomPayload{})
	assert.Len(t, b.got(EventPlayerLeft), 2)
}

func TestCountdownForRemovedRoomIsDropped(t *testing.T) {
	srv, _, _ := newTestServer(t, time.Hour)
	host := newConn("a")
	code := srv.onRoomCreate(host, createPayload{PlayerName: "Alice"})["roomCode"].(string)
	srv.onRoomLeave(host, roomPayload{RoomCode: code})

	srv.startTimer(code, 2, 1)
	_, ok := srv.timers.State(code)
	assert.False(t, ok)
	assert.Zero(t, srv.timers.Active())
}
