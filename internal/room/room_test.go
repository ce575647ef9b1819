package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prettylittleliars/backend/internal/auth"
	"github.com/prettylittleliars/backend/internal/game"
	"github.com/prettylittleliars/backend/internal/protocol"
)

// liveState is a show mid-flight: two comedians, two stories then one.
func liveState() *game.State {
	st := game.NewState()
	st.Comedians = []game.Comedian{
		{
			ID:   "c1",
			Name: "First",
			Stories: []game.Story{
				{ID: "s1", Text: "one", IsTrue: true},
				{ID: "s2", Text: "two", IsTrue: false},
			},
		},
		{
			ID:   "c2",
			Name: "Second",
			Stories: []game.Story{
				{ID: "s3", Text: "three", IsTrue: true},
			},
		},
	}
	st.Mode = game.ModeLive
	st.Phase = game.PhaseStory
	return st
}

func newTestRoom(t *testing.T, initial *game.State) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return New(ctx, Options{
		Initial: initial,
		Tokens:  auth.NewTokenService("test-secret", time.Hour),
	})
}

func connect(t *testing.T, r *Room, connID string) chan protocol.Event {
	t.Helper()
	out := make(chan protocol.Event, 64)
	r.Inbox() <- Connect{ConnID: connID, Outbox: out}
	return out
}

func send(t *testing.T, r *Room, connID, eventType string, payload any) {
	t.Helper()
	evt, err := protocol.NewEvent(eventType, payload)
	require.NoError(t, err)
	r.Inbox() <- FromClient{ConnID: connID, Event: evt}
}

// waitFor receives until an event of the wanted type arrives, skipping
// interleaved broadcasts, so tests never hang on fan-out ordering.
func waitFor(t *testing.T, ch <-chan protocol.Event, eventType string) protocol.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", eventType)
			}
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func recvNone(t *testing.T, ch <-chan protocol.Event, within time.Duration) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if ok {
			t.Fatalf("expected no event within %v, got %s", within, evt.Type)
		}
	case <-time.After(within):
	}
}

func decodePayload(t *testing.T, evt protocol.Event, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(evt.Payload, target))
}

func view(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for view")
		return View{}
	}
}

// joinPlayer connects a channel and joins it as a player, returning the
// outbox and the assigned identity.
func joinPlayer(t *testing.T, r *Room, connID, name string) (chan protocol.Event, protocol.PlayerJoinedPayload) {
	t.Helper()
	out := connect(t, r, connID)
	send(t, r, connID, protocol.EvtPlayerJoin, protocol.PlayerJoinPayload{PlayerName: name})

	var joined protocol.PlayerJoinedPayload
	decodePayload(t, waitFor(t, out, protocol.EvtPlayerJoined), &joined)
	return out, joined
}

func TestManagerConnectReceivesSnapshot(t *testing.T) {
	r := newTestRoom(t, liveState())
	out := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)

	var p protocol.StateUpdatePayload
	decodePayload(t, waitFor(t, out, protocol.EvtStateUpdate), &p)
	require.Equal(t, game.ModeLive, p.GameState.Mode)
	require.Len(t, p.GameState.Comedians, 2)
}

func TestPlayerJoinIssuesIdentityAndBroadcasts(t *testing.T) {
	r := newTestRoom(t, liveState())
	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	playerOut, joined := joinPlayer(t, r, "p-conn", "Ann")
	require.NotEmpty(t, joined.PlayerID)
	require.NotEmpty(t, joined.Token)

	var snap protocol.StateUpdatePayload
	decodePayload(t, waitFor(t, playerOut, protocol.EvtStateUpdate), &snap)
	require.Contains(t, snap.GameState.Players, joined.PlayerID)

	decodePayload(t, waitFor(t, manager, protocol.EvtStateUpdate), &snap)
	require.Equal(t, "Ann", snap.GameState.Players[joined.PlayerID].Name)
}

func TestVoteAcksVoterAndCountsToManagerOnly(t *testing.T) {
	r := newTestRoom(t, liveState())

	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	display := connect(t, r, "d1")
	send(t, r, "d1", protocol.EvtDisplayConnect, nil)
	waitFor(t, display, protocol.EvtStateUpdate)

	playerOut, _ := joinPlayer(t, r, "p-conn", "Ann")
	// Drain the join broadcast everywhere before the vote.
	waitFor(t, playerOut, protocol.EvtStateUpdate)
	waitFor(t, manager, protocol.EvtStateUpdate)
	waitFor(t, display, protocol.EvtStateUpdate)

	send(t, r, "p-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteTruth})

	waitFor(t, playerOut, protocol.EvtVoteAcknowledged)

	var count protocol.VoteCountPayload
	decodePayload(t, waitFor(t, manager, protocol.EvtVoteCount), &count)
	require.Equal(t, 1, count.VoteCount)
	require.Equal(t, 1, count.TotalPlayers)

	// The one deliberate broadcast exception: nobody else hears a thing.
	recvNone(t, display, 100*time.Millisecond)
}

func TestPhaseAdvanceRoundCycle(t *testing.T) {
	r := newTestRoom(t, liveState())

	display := connect(t, r, "d1")
	send(t, r, "d1", protocol.EvtDisplayConnect, nil)
	waitFor(t, display, protocol.EvtStateUpdate)

	annOut, ann := joinPlayer(t, r, "ann-conn", "Ann")
	bobOut, bob := joinPlayer(t, r, "bob-conn", "Bob")

	send(t, r, "ann-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteTruth})
	send(t, r, "bob-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteLie})
	waitFor(t, annOut, protocol.EvtVoteAcknowledged)
	waitFor(t, bobOut, protocol.EvtVoteAcknowledged)

	// story -> results: votes lock and the split goes out.
	send(t, r, "d1", protocol.EvtPhaseAdvance, nil)
	var locked protocol.VotesLockedPayload
	decodePayload(t, waitFor(t, display, protocol.EvtVotesLocked), &locked)
	require.Equal(t, 1, locked.Distribution.Truth)
	require.Equal(t, 1, locked.Distribution.Lie)
	require.Equal(t, 2, locked.Distribution.Total)

	var snap protocol.StateUpdatePayload
	decodePayload(t, waitFor(t, display, protocol.EvtStateUpdate), &snap)
	require.Equal(t, game.PhaseResults, snap.GameState.Phase)
	require.True(t, snap.GameState.VotesLocked)

	// results -> reveal: story s1 is true, Ann alone is correct of two.
	send(t, r, "d1", protocol.EvtPhaseAdvance, nil)
	var reveal protocol.RevealAnswerPayload
	decodePayload(t, waitFor(t, display, protocol.EvtRevealAnswer), &reveal)
	require.True(t, reveal.IsTrue)
	require.Equal(t, 500, reveal.PointsAwarded[ann.PlayerID])
	require.Equal(t, 0, reveal.PointsAwarded[bob.PlayerID])

	// reveal -> leaderboard.
	send(t, r, "d1", protocol.EvtPhaseAdvance, nil)
	var board protocol.LeaderboardShowPayload
	decodePayload(t, waitFor(t, display, protocol.EvtLeaderboardShow), &board)
	require.Len(t, board.TopPlayers, 2)
	require.Equal(t, ann.PlayerID, board.TopPlayers[0].PlayerID)
	require.Equal(t, 500, board.TopPlayers[0].TotalScore)
	require.Equal(t, 1, board.TopPlayers[0].Rank)

	v := view(t, r)
	require.Equal(t, 500, v.State.Players[ann.PlayerID].TotalScore)
	require.Equal(t, 0, v.State.Players[bob.PlayerID].TotalScore)
}

func TestVoteAfterLockIsRejected(t *testing.T) {
	r := newTestRoom(t, liveState())
	annOut, ann := joinPlayer(t, r, "ann-conn", "Ann")
	send(t, r, "ann-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteTruth})
	waitFor(t, annOut, protocol.EvtVoteAcknowledged)

	send(t, r, "ann-conn", protocol.EvtPhaseAdvance, nil)
	waitFor(t, annOut, protocol.EvtVotesLocked)

	send(t, r, "ann-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteLie})
	var errPayload protocol.ErrorPayload
	decodePayload(t, waitFor(t, annOut, protocol.EvtError), &errPayload)
	require.Contains(t, errPayload.Message, "locked")

	v := view(t, r)
	require.Equal(t, game.VoteTruth, v.State.Votes[ann.PlayerID])
}

func TestGuardTableBlocksEditsWhileLive(t *testing.T) {
	r := newTestRoom(t, liveState())
	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	send(t, r, "m1", protocol.EvtStoryEdit, protocol.StoryEditPayload{StoryID: "s1", Text: "sneaky", IsTrue: false})

	var errPayload protocol.ErrorPayload
	decodePayload(t, waitFor(t, manager, protocol.EvtError), &errPayload)
	require.Contains(t, errPayload.Message, "not allowed")

	v := view(t, r)
	require.Equal(t, "one", v.State.Comedians[0].Stories[0].Text)
}

func TestGameStartRequiresContent(t *testing.T) {
	r := newTestRoom(t, nil) // fresh setup-mode session, empty lineup
	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	send(t, r, "m1", protocol.EvtGameStart, nil)
	waitFor(t, manager, protocol.EvtError)

	v := view(t, r)
	require.Equal(t, game.ModeSetup, v.State.Mode)
}

func TestDisconnectMarksPlayerAndKeepsVote(t *testing.T) {
	r := newTestRoom(t, liveState())
	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	annOut, ann := joinPlayer(t, r, "ann-conn", "Ann")
	send(t, r, "ann-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: game.VoteLie})
	waitFor(t, annOut, protocol.EvtVoteAcknowledged)

	r.Inbox() <- Disconnect{ConnID: "ann-conn"}

	var snap protocol.StateUpdatePayload
	for {
		decodePayload(t, waitFor(t, manager, protocol.EvtStateUpdate), &snap)
		if !snap.GameState.Players[ann.PlayerID].Connected {
			break
		}
	}
	require.Contains(t, snap.GameState.Players, ann.PlayerID)
	require.Equal(t, game.VoteLie, snap.GameState.Votes[ann.PlayerID])
}

func TestRejoinWithTokenKeepsIdentity(t *testing.T) {
	r := newTestRoom(t, liveState())
	_, first := joinPlayer(t, r, "conn-1", "Ann")

	r.Inbox() <- Disconnect{ConnID: "conn-1"}

	out := connect(t, r, "conn-2")
	send(t, r, "conn-2", protocol.EvtPlayerJoin, protocol.PlayerJoinPayload{
		PlayerName: "Ann",
		Token:      first.Token,
	})

	var rejoined protocol.PlayerJoinedPayload
	decodePayload(t, waitFor(t, out, protocol.EvtPlayerJoined), &rejoined)
	require.Equal(t, first.PlayerID, rejoined.PlayerID)

	v := view(t, r)
	require.Len(t, v.State.Players, 1)
	require.True(t, v.State.Players[first.PlayerID].Connected)
}

// TestFullShowTraversal drives a complete show: three advances per story,
// slide:next between stories, and checks both the between-comedian
// leaderboard slide and the end-of-content reset back to setup with players
// and scores intact.
func TestFullShowTraversal(t *testing.T) {
	r := newTestRoom(t, liveState())
	manager := connect(t, r, "m1")
	send(t, r, "m1", protocol.EvtManagerConnect, nil)
	waitFor(t, manager, protocol.EvtStateUpdate)

	annOut, ann := joinPlayer(t, r, "ann-conn", "Ann")

	runRound := func(vote game.Vote) {
		send(t, r, "ann-conn", protocol.EvtVoteSubmit, protocol.VoteSubmitPayload{Vote: vote})
		waitFor(t, annOut, protocol.EvtVoteAcknowledged)
		send(t, r, "m1", protocol.EvtPhaseAdvance, nil)
		send(t, r, "m1", protocol.EvtPhaseAdvance, nil)
		send(t, r, "m1", protocol.EvtPhaseAdvance, nil)
		waitFor(t, manager, protocol.EvtLeaderboardShow)
	}

	// Comedian 1, story 1 (true): Ann alone and correct pays 0.
	runRound(game.VoteTruth)
	send(t, r, "m1", protocol.EvtSlideNext, nil)

	// Comedian 1, story 2.
	runRound(game.VoteLie)
	send(t, r, "m1", protocol.EvtSlideNext, nil)

	// Rollover lands on a leaderboard slide before comedian 2's story.
	var snap protocol.StateUpdatePayload
	decodePayload(t, waitFor(t, manager, protocol.EvtStateUpdate), &snap)
	v := view(t, r)
	require.Equal(t, 1, v.State.CurrentComedianIndex)
	require.Equal(t, game.PhaseLeaderboard, v.State.Phase)

	// Back into a story via a direct jump, then play it out.
	send(t, r, "m1", protocol.EvtSlideJump, protocol.SlideJumpPayload{ComedianIndex: 1, StoryIndex: 0})
	runRound(game.VoteTruth)

	// Last story of the last comedian: next slide ends the show.
	send(t, r, "m1", protocol.EvtSlideNext, nil)
	for {
		decodePayload(t, waitFor(t, manager, protocol.EvtStateUpdate), &snap)
		if snap.GameState.Mode == game.ModeSetup {
			break
		}
	}
	require.Equal(t, game.PhaseStory, snap.GameState.Phase)
	require.Contains(t, snap.GameState.Players, ann.PlayerID)

	v = view(t, r)
	require.Contains(t, v.State.Players, ann.PlayerID)
	require.Equal(t, 0, v.State.Players[ann.PlayerID].TotalScore)
}
