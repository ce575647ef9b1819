// Package room runs the authoritative show loop. One goroutine owns the
// session and handles every inbound event to completion before the next, so
// the whole game is a sequential state machine and no mutator ever races.
package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prettylittleliars/backend/internal/auth"
	"github.com/prettylittleliars/backend/internal/game"
	"github.com/prettylittleliars/backend/internal/persist"
	"github.com/prettylittleliars/backend/internal/protocol"
)

// Role is how a connection identified itself. Connections start anonymous
// and bind a role with their first connect/join event.
type Role string

const (
	RoleNone    Role = ""
	RoleManager Role = "manager"
	RoleDisplay Role = "display"
	RolePlayer  Role = "player"
)

type Msg interface{ isRoomMsg() }

// Connect registers a transport channel. The room replies to it only via
// the outbox.
type Connect struct {
	ConnID string
	Outbox chan protocol.Event
}

// Disconnect is the channel-close signal.
type Disconnect struct{ ConnID string }

// FromClient carries one decoded inbound event.
type FromClient struct {
	ConnID string
	Event  protocol.Event
}

// GetView is a consistent read of the session, answered with a deep copy.
// Used by the debug endpoint and tests.
type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Connect) isRoomMsg()    {}
func (Disconnect) isRoomMsg() {}
func (FromClient) isRoomMsg() {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

type View struct {
	NumClients int
	State      *game.State
}

type client struct {
	id       string
	role     Role
	playerID string
	outbox   chan protocol.Event
}

// Options wires the room's collaborators.
type Options struct {
	Initial         *game.State // nil means a fresh session
	Tokens          *auth.TokenService
	Store           persist.Store
	Logger          *zap.Logger
	LeaderboardSize int
	PersistInterval time.Duration
}

type Room struct {
	inbox  chan Msg
	sess   *game.Session
	tokens *auth.TokenService
	store  persist.Store
	log    *zap.Logger

	clients     map[string]*client
	managerConn string
	displayConn string
	playerConns map[string]string // playerID -> connID, many joins collapse to the latest

	leaderboardSize int
	persistInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.Store == nil {
		opts.Store = persist.NopStore{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 5
	}

	sess := game.NewSession()
	sess.Init(opts.Initial)

	r := &Room{
		inbox:           make(chan Msg, 64),
		sess:            sess,
		tokens:          opts.Tokens,
		store:           opts.Store,
		log:             opts.Logger,
		clients:         make(map[string]*client),
		playerConns:     make(map[string]string),
		leaderboardSize: opts.LeaderboardSize,
		persistInterval: opts.PersistInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
	go r.loop()
	return r
}

// Inbox is how the transport layer and tests talk to the room.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	var tick <-chan time.Time
	if r.persistInterval > 0 {
		ticker := time.NewTicker(r.persistInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-tick:
			r.persistAsync()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Connect:
				r.clients[msg.ConnID] = &client{id: msg.ConnID, outbox: msg.Outbox}
				r.log.Debug("client connected", zap.String("conn", msg.ConnID))

			case Disconnect:
				r.handleDisconnect(msg.ConnID)

			case FromClient:
				r.dispatch(msg.ConnID, msg.Event)

			case GetView:
				snap, _ := r.sess.Snapshot()
				msg.Reply <- View{NumClients: len(r.clients), State: snap}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}

// dropClient removes a connection and clears whatever slot it held. Player
// records outlive their channels: the player is only marked disconnected,
// and any vote already cast stays. Returns true when a player was affected
// so the caller can decide to rebroadcast.
func (r *Room) dropClient(connID string) bool {
	c, ok := r.clients[connID]
	if !ok {
		return false
	}
	delete(r.clients, connID)
	close(c.outbox)
	r.log.Info("client disconnected",
		zap.String("conn", connID),
		zap.String("role", string(c.role)))

	switch {
	case connID == r.managerConn:
		r.managerConn = ""
	case connID == r.displayConn:
		r.displayConn = ""
	case c.playerID != "":
		if r.playerConns[c.playerID] == connID {
			delete(r.playerConns, c.playerID)
		}
		r.sess.SetPlayerConnected(c.playerID, false)
		return true
	}
	return false
}

func (r *Room) handleDisconnect(connID string) {
	if r.dropClient(connID) {
		r.broadcastState()
	}
}

// send delivers to one connection, dropping it if its buffer is full.
func (r *Room) send(connID string, evt protocol.Event) {
	c, ok := r.clients[connID]
	if !ok {
		return
	}
	select {
	case c.outbox <- evt:
	default:
		r.dropClient(connID)
	}
}

// broadcast fans one event out to every registered connection.
func (r *Room) broadcast(evt protocol.Event) {
	for id := range r.clients {
		r.send(id, evt)
	}
}

func (r *Room) broadcastState() {
	st, err := r.sess.State()
	if err != nil {
		return
	}
	evt, err := protocol.NewEvent(protocol.EvtStateUpdate, protocol.StateUpdatePayload{GameState: st})
	if err != nil {
		r.log.Error("encode state update", zap.Error(err))
		return
	}
	r.broadcast(evt)
}

func (r *Room) sendState(connID string) {
	st, err := r.sess.State()
	if err != nil {
		return
	}
	evt, err := protocol.NewEvent(protocol.EvtStateUpdate, protocol.StateUpdatePayload{GameState: st})
	if err != nil {
		r.log.Error("encode state update", zap.Error(err))
		return
	}
	r.send(connID, evt)
}

func (r *Room) sendError(connID string, message string) {
	evt, err := protocol.NewEvent(protocol.EvtError, protocol.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	r.send(connID, evt)
}

// persistAsync snapshots the session and saves it off-loop. Persistence is a
// backup, so failures are logged and forgotten.
func (r *Room) persistAsync() {
	snap, err := r.sess.Snapshot()
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Save(ctx, snap); err != nil {
			r.log.Warn("save snapshot", zap.Error(err))
		}
	}()
}
