package room

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prettylittleliars/backend/internal/game"
	"github.com/prettylittleliars/backend/internal/protocol"
	"github.com/prettylittleliars/backend/internal/scoring"
)

var errUnknownEvent = errors.New("unknown event type")
var errNotJoined = errors.New("not joined as a player")

// eventModes is the guard table: which modes each mutating event is legal
// in. Events absent from the table (the connect/join family) are legal in
// any mode. Clients misbehaving outside their window get an error event
// instead of a silent state change.
var eventModes = map[string][]game.Mode{
	protocol.EvtGameSetup:      {game.ModeSetup},
	protocol.EvtComedianAdd:    {game.ModeSetup},
	protocol.EvtComedianEdit:   {game.ModeSetup},
	protocol.EvtComedianDelete: {game.ModeSetup},
	protocol.EvtStoryAdd:       {game.ModeSetup},
	protocol.EvtStoryEdit:      {game.ModeSetup},
	protocol.EvtStoryDelete:    {game.ModeSetup},
	protocol.EvtGameStart:      {game.ModeSetup},
	protocol.EvtGamePause:      {game.ModeLive},
	protocol.EvtGameResume:     {game.ModePaused},
	protocol.EvtGameEnd:        {game.ModeLive, game.ModePaused},
	protocol.EvtSlideNext:      {game.ModeLive},
	protocol.EvtSlideJump:      {game.ModeLive},
	protocol.EvtPhaseAdvance:   {game.ModeLive},
	protocol.EvtVoteSubmit:     {game.ModeLive},
}

func modeAllows(evtType string, m game.Mode) bool {
	modes, ok := eventModes[evtType]
	if !ok {
		return true
	}
	for _, allowed := range modes {
		if allowed == m {
			return true
		}
	}
	return false
}

// dispatch handles one inbound event to completion. Every failure is caught
// here, reported back to the originating channel, and goes no further: the
// session is never left half-applied because each store mutator is
// all-or-nothing.
func (r *Room) dispatch(connID string, evt protocol.Event) {
	c, ok := r.clients[connID]
	if !ok {
		return
	}
	if err := r.handleEvent(c, evt); err != nil {
		r.log.Warn("event rejected",
			zap.String("type", evt.Type),
			zap.String("conn", connID),
			zap.Error(err))
		r.sendError(connID, err.Error())
	}
}

func (r *Room) handleEvent(c *client, evt protocol.Event) error {
	st, err := r.sess.State()
	if err != nil {
		return err
	}
	if !modeAllows(evt.Type, st.Mode) {
		return fmt.Errorf("%w: %s in mode %s", game.ErrInvalidState, evt.Type, st.Mode)
	}

	switch evt.Type {
	case protocol.EvtManagerConnect:
		c.role = RoleManager
		r.managerConn = c.id
		r.log.Info("manager connected", zap.String("conn", c.id))
		r.sendState(c.id)
		return nil

	case protocol.EvtDisplayConnect:
		c.role = RoleDisplay
		r.displayConn = c.id
		r.log.Info("display connected", zap.String("conn", c.id))
		r.sendState(c.id)
		return nil

	case protocol.EvtPlayerJoin:
		return r.handlePlayerJoin(c, evt.Payload)

	case protocol.EvtGameSetup:
		var p protocol.GameSetupPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.SetComedians(p.Comedians); err != nil {
			return err
		}
		r.log.Info("lineup replaced", zap.Int("comedians", len(p.Comedians)))
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtGameStart:
		return r.handleGameStart(st)

	case protocol.EvtGamePause:
		_ = r.sess.SetMode(game.ModePaused)
		r.broadcastState()
		return nil

	case protocol.EvtGameResume:
		_ = r.sess.SetMode(game.ModeLive)
		r.broadcastState()
		return nil

	case protocol.EvtGameEnd:
		r.endShow()
		return nil

	case protocol.EvtSlideNext:
		hasNext, err := r.sess.NextSlide()
		if err != nil {
			return err
		}
		if !hasNext {
			// Lineup exhausted: back to setup, players and scores intact.
			r.log.Info("lineup exhausted, show over")
			r.endShow()
			return nil
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtSlideJump:
		var p protocol.SlideJumpPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.JumpToSlide(p.ComedianIndex, p.StoryIndex); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtPhaseAdvance:
		return r.handlePhaseAdvance(st)

	case protocol.EvtComedianAdd:
		var p protocol.ComedianAddPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if _, err := r.sess.AddComedian(p.Name, p.Instagram, p.PhotoURL); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtComedianEdit:
		var p protocol.ComedianEditPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.UpdateComedian(p.ComedianID, p.Name, p.Instagram, p.PhotoURL); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtComedianDelete:
		var p protocol.ComedianDeletePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.DeleteComedian(p.ComedianID); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtStoryAdd:
		var p protocol.StoryAddPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if _, err := r.sess.AddStory(p.ComedianID, p.Text, p.IsTrue); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtStoryEdit:
		var p protocol.StoryEditPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.UpdateStory(p.StoryID, p.Text, p.IsTrue); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtStoryDelete:
		var p protocol.StoryDeletePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := r.sess.DeleteStory(p.StoryID); err != nil {
			return err
		}
		r.persistAsync()
		r.broadcastState()
		return nil

	case protocol.EvtVoteSubmit:
		return r.handleVoteSubmit(c, st, evt.Payload)

	default:
		return fmt.Errorf("%w: %s", errUnknownEvent, evt.Type)
	}
}

// handlePlayerJoin creates a player, or reattaches the connection to an
// existing one when the join carries a valid session token. The joining
// channel gets its identity and a fresh snapshot before everyone else hears
// about it.
func (r *Room) handlePlayerJoin(c *client, payload json.RawMessage) error {
	var p protocol.PlayerJoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	st, err := r.sess.State()
	if err != nil {
		return err
	}

	var player *game.Player
	if p.Token != "" && r.tokens != nil {
		if claims, err := r.tokens.ValidatePlayerToken(p.Token); err == nil && claims.SessionID == st.SessionID {
			if existing, err := r.sess.ReconnectPlayer(claims.PlayerID); err == nil {
				player = existing
			}
		}
	}
	if player == nil {
		player, err = r.sess.AddPlayer(uuid.NewString(), p.PlayerName)
		if err != nil {
			return err
		}
	}

	c.role = RolePlayer
	c.playerID = player.ID
	r.playerConns[player.ID] = c.id

	token := ""
	if r.tokens != nil {
		token, err = r.tokens.IssuePlayerToken(st.SessionID, player.ID)
		if err != nil {
			r.log.Warn("issue player token", zap.Error(err))
		}
	}

	joined, err := protocol.NewEvent(protocol.EvtPlayerJoined, protocol.PlayerJoinedPayload{
		PlayerID: player.ID,
		Token:    token,
	})
	if err == nil {
		r.send(c.id, joined)
	}
	r.sendState(c.id)

	r.log.Info("player joined",
		zap.String("player", player.ID),
		zap.String("name", player.Name))

	r.persistAsync()
	r.broadcastState()
	return nil
}

func (r *Room) handleGameStart(st *game.State) error {
	if len(st.Comedians) == 0 || len(st.Comedians[0].Stories) == 0 {
		return fmt.Errorf("%w: cannot start with an empty lineup", game.ErrInvalidState)
	}
	st.CurrentComedianIndex = 0
	st.CurrentStoryIndex = 0
	_ = r.sess.ResetVotes()
	_ = r.sess.SetMode(game.ModeLive)
	_ = r.sess.SetPhase(game.PhaseStory)
	r.log.Info("show started", zap.String("session", st.SessionID))
	r.persistAsync()
	r.broadcastState()
	return nil
}

// endShow returns the session to setup. Players and their scores survive, so
// the same crowd can be carried into a restart.
func (r *Room) endShow() {
	_ = r.sess.SetMode(game.ModeSetup)
	_ = r.sess.SetPhase(game.PhaseStory)
	r.persistAsync()
	r.broadcastState()
}

// handlePhaseAdvance walks one round through its phases:
// story -> results locks votes and shows the split, results -> reveal scores
// the round against the ground truth, reveal -> leaderboard shows standings.
// Advancing past leaderboard does nothing; moving on is slide:next's job.
func (r *Room) handlePhaseAdvance(st *game.State) error {
	switch st.Phase {
	case game.PhaseStory:
		_ = r.sess.LockVotes()
		_ = r.sess.SetPhase(game.PhaseResults)
		evt, err := protocol.NewEvent(protocol.EvtVotesLocked, protocol.VotesLockedPayload{
			Distribution: scoring.VoteDistribution(st.Votes),
		})
		if err != nil {
			return err
		}
		r.broadcast(evt)

	case game.PhaseResults:
		story, err := r.sess.CurrentStory()
		if err != nil {
			return err
		}
		roundScores := scoring.CalculateScores(st.Votes, story.IsTrue)
		scoring.ApplyScores(st, roundScores)
		_ = r.sess.SetPhase(game.PhaseReveal)
		evt, err := protocol.NewEvent(protocol.EvtRevealAnswer, protocol.RevealAnswerPayload{
			IsTrue:        story.IsTrue,
			PointsAwarded: roundScores,
		})
		if err != nil {
			return err
		}
		r.broadcast(evt)

	case game.PhaseReveal:
		_ = r.sess.SetPhase(game.PhaseLeaderboard)
		evt, err := protocol.NewEvent(protocol.EvtLeaderboardShow, protocol.LeaderboardShowPayload{
			TopPlayers: scoring.Leaderboard(st, r.leaderboardSize),
		})
		if err != nil {
			return err
		}
		r.broadcast(evt)

	case game.PhaseLeaderboard:
		// Nothing left to advance within this story.
	}

	r.persistAsync()
	r.broadcastState()
	return nil
}

// handleVoteSubmit is the one mutation that deliberately avoids a full-state
// broadcast: the voter gets an ack, the manager gets a running count, and
// nobody else learns how the room is leaning mid-story.
func (r *Room) handleVoteSubmit(c *client, st *game.State, payload json.RawMessage) error {
	if c.playerID == "" {
		return errNotJoined
	}
	if st.VotesLocked {
		return game.ErrVotesLocked
	}
	if st.Phase != game.PhaseStory {
		return fmt.Errorf("%w: voting is open only during the story phase", game.ErrInvalidState)
	}

	var p protocol.VoteSubmitPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if p.Vote != game.VoteTruth && p.Vote != game.VoteLie {
		return fmt.Errorf("invalid vote %q", p.Vote)
	}

	if err := r.sess.SubmitVote(c.playerID, p.Vote); err != nil {
		return err
	}

	ack, err := protocol.NewEvent(protocol.EvtVoteAcknowledged, nil)
	if err == nil {
		r.send(c.id, ack)
	}

	if r.managerConn != "" {
		count, err := protocol.NewEvent(protocol.EvtVoteCount, protocol.VoteCountPayload{
			VoteCount:    len(st.Votes),
			TotalPlayers: len(st.Players),
		})
		if err == nil {
			r.send(r.managerConn, count)
		}
	}
	return nil
}
