package ws

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/cavetalk/internal/config"
	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
	"github.com/kiliankoe/cavetalk/internal/timer"
)

type ConnCtx struct {
	Code     string
	PlayerID string // empty for watchers
}

type broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

type Server struct {
	rooms  *room.Manager
	timers *timer.Service
	config config.Config
	io     broadcaster

	mu      sync.Mutex
	members map[string]map[string]socketio.Conn // roomCode -> socketID -> Conn
}

func New(rooms *room.Manager, timers *timer.Service, cfg config.Config) *Server {
	return &Server{
		rooms:   rooms,
		timers:  timers,
		config:  cfg,
		members: make(map[string]map[string]socketio.Conn),
	}
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type createPayload struct {
	PlayerName string `json:"playerName"`
}

type joinPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type assignPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId"`
}

type startPayload struct {
	RoomCode string   `json:"roomCode"`
	MaxTurns int      `json:"maxTurns"`
	PackIDs  []string `json:"packIds"`
}

type reconnectPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Debug().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", EventRoomCreate, srv.onRoomCreate)
	io.OnEvent("/", EventRoomJoin, srv.onRoomJoin)
	io.OnEvent("/", EventRoomLeave, srv.onRoomLeave)
	io.OnEvent("/", EventRoomWatch, srv.onRoomWatch)
	io.OnEvent("/", EventTeamAssign, srv.onTeamAssign)
	io.OnEvent("/", EventTeamShuffle, srv.onTeamShuffle)
	io.OnEvent("/", EventGameStart, srv.onGameStart)
	io.OnEvent("/", EventGameEnd, srv.onGameEnd)
	io.OnEvent("/", EventTurnStart, srv.onTurnStart)
	io.OnEvent("/", EventTurnCorrectEasy, srv.onCorrectEasy)
	io.OnEvent("/", EventTurnCorrectHard, srv.onCorrectHard)
	io.OnEvent("/", EventTurnSkip, srv.onSkip)
	io.OnEvent("/", EventTurnNo, srv.onNo)
	io.OnEvent("/", EventPlayerReconnect, srv.onReconnect)

	io.OnError("/", func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", srv.onDisconnect)

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", srv.config.CORSOrigin)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) onRoomCreate(s socketio.Conn, p createPayload) map[string]any {
	snap, playerID, err := srv.rooms.CreateRoom(p.PlayerName)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, snap.Code, playerID)
	log.Info().Str("sid", s.ID()).Str("code", snap.Code).Str("playerId", playerID).Msg("room:create")

	s.Emit(EventRoomCreated, map[string]any{"roomCode": snap.Code, "playerId": playerID})
	s.Emit(EventRoomState, roomState(snap))
	return map[string]any{"roomCode": snap.Code, "playerId": playerID}
}

func (srv *Server) onRoomJoin(s socketio.Conn, p joinPayload) map[string]any {
	snap, playerID, err := srv.rooms.JoinRoom(p.RoomCode, p.PlayerName)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, snap.Code, playerID)
	log.Info().Str("sid", s.ID()).Str("code", snap.Code).Str("playerId", playerID).Msg("room:join")

	s.Emit(EventRoomJoined, map[string]any{"roomCode": snap.Code, "playerId": playerID})
	if player, ok := snap.Player(playerID); ok {
		srv.broadcast(snap.Code, EventPlayerJoined, map[string]any{"player": player})
	}
	srv.emitRoomState(snap)
	return map[string]any{"roomCode": snap.Code, "playerId": playerID}
}

func (srv *Server) onRoomLeave(s socketio.Conn, p roomPayload) map[string]any {
	ctx := connCtx(s)
	code := codeFor(p.RoomCode, ctx)
	if ctx.PlayerID == "" || code == "" {
		return srv.err(s, errNotInRoom)
	}
	snap, stillOpen := srv.rooms.LeaveRoom(code, ctx.PlayerID)
	srv.detach(s, code)
	log.Info().Str("sid", s.ID()).Str("code", code).Str("playerId", ctx.PlayerID).Msg("room:leave")

	srv.broadcast(code, EventPlayerLeft, map[string]any{"playerId": ctx.PlayerID})
	if stillOpen {
		srv.emitRoomState(snap)
	}
	return map[string]any{"ok": true}
}

// onRoomWatch subscribes a connection to a room's broadcasts without joining
// the game, for shared screens.
func (srv *Server) onRoomWatch(s socketio.Conn, p roomPayload) map[string]any {
	snap, err := srv.rooms.Snapshot(p.RoomCode)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, snap.Code, "")
	s.Emit(EventRoomState, roomState(snap.Public()))
	if snap.State != game.StateLobby {
		s.Emit(EventGameState, srv.gameState(snap))
	}
	return map[string]any{"ok": true}
}

func (srv *Server) onTeamAssign(s socketio.Conn, p assignPayload) map[string]any {
	code := codeFor(p.RoomCode, connCtx(s))
	snap, err := srv.rooms.AssignTeam(code, p.PlayerID, p.TeamID)
	if err != nil {
		return srv.err(s, err)
	}
	srv.emitRoomState(snap)
	return map[string]any{"ok": true}
}

func (srv *Server) onTeamShuffle(s socketio.Conn, p roomPayload) map[string]any {
	code := codeFor(p.RoomCode, connCtx(s))
	snap, err := srv.rooms.ShuffleTeams(code)
	if err != nil {
		return srv.err(s, err)
	}
	srv.emitRoomState(snap)
	return map[string]any{"ok": true}
}

func (srv *Server) onGameStart(s socketio.Conn, p startPayload) map[string]any {
	ctx := connCtx(s)
	code := codeFor(p.RoomCode, ctx)
	snap, err := srv.rooms.StartGame(code, ctx.PlayerID, room.StartOptions{MaxTurns: p.MaxTurns, PackIDs: p.PackIDs})
	if err != nil {
		return srv.err(s, err)
	}
	log.Info().Str("code", snap.Code).Int("teams", len(snap.Teams)).Msg("game:start")

	srv.broadcast(snap.Code, EventGameStarted, map[string]any{})
	srv.emitRoomState(snap)
	srv.emitGameState(snap)
	return map[string]any{"ok": true}
}

func (srv *Server) onGameEnd(s socketio.Conn, p roomPayload) map[string]any {
	ctx := connCtx(s)
	code := codeFor(p.RoomCode, ctx)
	snap, sum, err := srv.rooms.EndGameManually(code, ctx.PlayerID)
	if err != nil {
		return srv.err(s, err)
	}
	log.Info().Str("code", snap.Code).Msg("game:end")
	srv.finish(snap.Code, sum)
	srv.emitGameState(snap)
	return map[string]any{"ok": true}
}

func (srv *Server) onTurnStart(s socketio.Conn, p roomPayload) map[string]any {
	code := codeFor(p.RoomCode, connCtx(s))
	snap, err := srv.rooms.StartTurn(code)
	if err != nil {
		return srv.err(s, err)
	}
	code = snap.Code
	turn := snap.TurnNumber
	duration := snap.Config.TurnDurationSeconds
	log.Info().Str("code", code).Int("turn", turn).Str("team", snap.CurrentTurn.TeamID).Msg("turn:start")

	srv.broadcast(code, EventTurnStarted, TurnStartedResponse{
		Turn:          turnInfo(snap.CurrentTurn),
		TimerDuration: duration,
	})
	srv.emitCardToPoet(snap)

	srv.startTimer(code, duration, turn)
	srv.emitGameState(snap)
	return map[string]any{"ok": true}
}

// startTimer runs the countdown for a turn. The room lock is already released
// here, so a room deleted in between gets its countdown dropped again.
func (srv *Server) startTimer(code string, duration, turn int) {
	// Tick and warning only broadcast: they run under the timer's lock and
	// must stay out of the room manager.
	err := srv.timers.Start(code, duration, timer.Callbacks{
		OnTick: func(remaining int) {
			srv.broadcast(code, EventTurnTimer, map[string]any{"remaining": remaining})
		},
		OnWarning: func(remaining int) {
			srv.broadcast(code, EventTurnTimerWarning, map[string]any{"remaining": remaining})
		},
		OnExpired: func() {
			go srv.onTimerExpired(code, turn)
		},
	})
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to start turn timer")
		return
	}
	if _, err := srv.rooms.Snapshot(code); errors.Is(err, game.ErrNotFound) {
		srv.timers.Cleanup(code)
	}
}

func (srv *Server) onCorrectEasy(s socketio.Conn, p roomPayload) map[string]any {
	snap, pts, err := srv.rooms.MarkEasy(codeFor(p.RoomCode, connCtx(s)))
	if err != nil {
		return srv.err(s, err)
	}
	srv.scored(snap, pts, "easy", "Correct! +1 point")
	return map[string]any{"ok": true, "points": pts}
}

func (srv *Server) onCorrectHard(s socketio.Conn, p roomPayload) map[string]any {
	snap, pts, err := srv.rooms.MarkHard(codeFor(p.RoomCode, connCtx(s)))
	if err != nil {
		return srv.err(s, err)
	}
	srv.scored(snap, pts, "hard", "Correct! +3 points")
	return map[string]any{"ok": true, "points": pts}
}

// scored announces a credited guess. A repeated guess for the same card is
// worth nothing and announces nothing.
func (srv *Server) scored(snap room.Snapshot, pts int, kind, message string) {
	if pts == 0 {
		srv.emitGameState(snap)
		return
	}
	t := snap.CurrentTurn
	srv.broadcast(snap.Code, EventTurnScore, ScoreResponse{Points: pts, TotalScore: t.PointsEarned, Type: kind})
	srv.broadcast(snap.Code, EventFeedback, FeedbackResponse{Type: "correct", Message: message, TeamID: t.TeamID})
	if a, ok := lastAttempt(snap); ok {
		srv.broadcast(snap.Code, EventCardRevealed, CardRevealedResponse{Card: a.Card, Reason: kind, PointsEarned: a.PointsEarned})
	}
	srv.emitCardToPoet(snap)
	srv.emitGameState(snap)
}

func (srv *Server) onSkip(s socketio.Conn, p roomPayload) map[string]any {
	snap, a, err := srv.rooms.SkipCard(codeFor(p.RoomCode, connCtx(s)))
	if err != nil {
		return srv.err(s, err)
	}
	srv.discarded(snap, a, "skip", "skip", "Card skipped! -1 point")
	return map[string]any{"ok": true}
}

func (srv *Server) onNo(s socketio.Conn, p roomPayload) map[string]any {
	snap, a, err := srv.rooms.CallNo(codeFor(p.RoomCode, connCtx(s)))
	if err != nil {
		return srv.err(s, err)
	}
	srv.discarded(snap, a, "penalty", "no", "NO! -1 point")
	return map[string]any{"ok": true}
}

func (srv *Server) discarded(snap room.Snapshot, a game.CardAttempt, scoreType, reason, message string) {
	t := snap.CurrentTurn
	srv.broadcast(snap.Code, EventTurnScore, ScoreResponse{Points: a.PointsEarned, TotalScore: t.PointsEarned, Type: scoreType})
	srv.broadcast(snap.Code, EventFeedback, FeedbackResponse{Type: reason, Message: message, TeamID: t.TeamID})
	srv.broadcast(snap.Code, EventCardRevealed, CardRevealedResponse{Card: a.Card, Reason: reason, PointsEarned: a.PointsEarned})
	srv.emitCardToPoet(snap)
	srv.emitGameState(snap)
}

func (srv *Server) onReconnect(s socketio.Conn, p reconnectPayload) map[string]any {
	snap, ok := srv.rooms.ReconnectPlayer(p.RoomCode, p.PlayerID)
	if !ok {
		return srv.err(s, errUnknownPlayer)
	}
	srv.attach(s, snap.Code, p.PlayerID)
	log.Info().Str("sid", s.ID()).Str("code", snap.Code).Str("playerId", p.PlayerID).Msg("player:reconnect")

	srv.broadcast(snap.Code, EventPlayerReconnected, map[string]any{"playerId": p.PlayerID})
	srv.emitRoomState(snap)
	if snap.State != game.StateLobby {
		srv.emitGameState(snap)
		if snap.CurrentTurn != nil && snap.CurrentTurn.PoetID == p.PlayerID {
			s.Emit(EventTurnCard, map[string]any{"card": snap.CurrentTurn.CurrentCard})
		}
	}
	return map[string]any{"ok": true}
}

func (srv *Server) onDisconnect(s socketio.Conn, reason string) {
	ctx := connCtx(s)
	log.Debug().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	if ctx.Code == "" {
		return
	}
	srv.detach(s, ctx.Code)
	if ctx.PlayerID == "" || srv.connected(ctx.Code, ctx.PlayerID) {
		return
	}
	if _, ok := srv.rooms.MarkPlayerDisconnected(ctx.Code, ctx.PlayerID); ok {
		srv.broadcast(ctx.Code, EventPlayerDisconnected, map[string]any{"playerId": ctx.PlayerID})
	}
}

// onTimerExpired ends turn number turn. A turn already ended by other means
// is ignored.
func (srv *Server) onTimerExpired(code string, turn int) {
	snap, err := srv.rooms.ExpireTurn(code, turn)
	if err != nil {
		log.Debug().Err(err).Str("code", code).Int("turn", turn).Msg("timer expiry ignored")
		return
	}
	log.Info().Str("code", code).Int("turn", turn).Msg("turn timed out")

	srv.broadcast(code, EventFeedback, FeedbackResponse{Type: "time_up", Message: "Time's up!"})
	if ended, ok := turnEnded(snap); ok {
		srv.broadcast(code, EventTurnEnded, ended)
	}
	srv.emitGameState(snap)

	if snap.State == game.StateGameOver {
		sum, err := srv.rooms.Summary(code)
		if err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to build summary")
			return
		}
		srv.finish(code, sum)
	}
}

// finish announces the final result and appends it to the export file.
func (srv *Server) finish(code string, sum *game.Summary) {
	srv.broadcast(code, EventGameEnded, GameEnded(sum))
	if !srv.config.ExportEnabled {
		return
	}
	if err := game.ExportSummary(code, sum, srv.config.ExportFile, time.Now()); err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to export game results")
	} else {
		log.Info().Str("code", code).Str("file", srv.config.ExportFile).Msg("exported game results")
	}
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	resp := errorResponse(err)
	if resp.Code == "internal" {
		log.Error().Err(err).Str("sid", s.ID()).Msg("socket handler failed")
	}
	s.Emit(EventRoomError, resp)
	return map[string]any{"error": resp}
}

func (srv *Server) broadcast(code, event string, payload any) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", code, event, payload)
}

func (srv *Server) emitRoomState(snap room.Snapshot) {
	srv.broadcast(snap.Code, EventRoomState, roomState(snap.Public()))
}

func (srv *Server) emitGameState(snap room.Snapshot) {
	srv.broadcast(snap.Code, EventGameState, srv.gameState(snap))
}

func (srv *Server) gameState(snap room.Snapshot) GameStateResponse {
	var remaining *int
	if _, ok := srv.timers.State(snap.Code); ok && snap.State == game.StateTurnActive {
		r := srv.timers.Remaining(snap.Code)
		remaining = &r
	}
	return gameState(snap.Public(), remaining)
}

// emitCardToPoet sends the card in play to the poet's connections only.
func (srv *Server) emitCardToPoet(snap room.Snapshot) {
	t := snap.CurrentTurn
	if t == nil {
		return
	}
	for _, c := range srv.connsOf(snap.Code, t.PoetID) {
		c.Emit(EventTurnCard, map[string]any{"card": t.CurrentCard})
	}
}

func (srv *Server) attach(s socketio.Conn, code, playerID string) {
	ctx := connCtx(s)
	if ctx.Code != "" && ctx.Code != code {
		srv.detach(s, ctx.Code)
	}
	s.SetContext(&ConnCtx{Code: code, PlayerID: playerID})
	s.Join(code)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][s.ID()] = s
}

func (srv *Server) detach(s socketio.Conn, code string) {
	s.Leave(code)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, s.ID())
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) connsOf(code, playerID string) []socketio.Conn {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	var out []socketio.Conn
	for _, c := range srv.members[code] {
		if ctx, ok := c.Context().(*ConnCtx); ok && ctx.PlayerID == playerID {
			out = append(out, c)
		}
	}
	return out
}

// connected reports whether the player still has another open connection.
func (srv *Server) connected(code, playerID string) bool {
	return len(srv.connsOf(code, playerID)) > 0
}

func connCtx(s socketio.Conn) *ConnCtx {
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx != nil {
		return ctx
	}
	return &ConnCtx{}
}

// codeFor prefers the code the client sent and falls back to the room the
// connection joined.
func codeFor(sent string, ctx *ConnCtx) string {
	if c := strings.TrimSpace(sent); c != "" {
		return c
	}
	return ctx.Code
}
