package game

// Mode is the coarse lifecycle of a show: content curation, live rounds,
// or a temporary hold.
type Mode string

const (
	ModeSetup  Mode = "setup"
	ModeLive   Mode = "live"
	ModePaused Mode = "paused"
)

// Phase is the sub-state of a single story round while the show is live.
type Phase string

const (
	PhaseStory       Phase = "story"
	PhaseResults     Phase = "results"
	PhaseReveal      Phase = "reveal"
	PhaseLeaderboard Phase = "leaderboard"
)

// Vote is a player's guess about the current story.
type Vote string

const (
	VoteTruth Vote = "truth"
	VoteLie   Vote = "lie"
)

type Story struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	IsTrue bool   `json:"isTrue"`
}

type Comedian struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Instagram string  `json:"instagram"`
	PhotoURL  string  `json:"photoUrl,omitempty"`
	Stories   []Story `json:"stories"`
}

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
	TotalScore int    `json:"totalScore"`
}

// State is the full authoritative record for one show. It serializes as the
// snapshot clients render and the snapshot the persist layer saves.
type State struct {
	SessionID string `json:"sessionId"`
	Mode      Mode   `json:"mode"`

	Comedians []Comedian `json:"comedians"`

	// Cursor into Comedians, meaningful only while Mode != setup.
	CurrentComedianIndex int   `json:"currentComedianIndex"`
	CurrentStoryIndex    int   `json:"currentStoryIndex"`
	Phase                Phase `json:"phase"`

	Players map[string]*Player `json:"players"`

	// Votes for the current story only. A missing key means no vote.
	Votes       map[string]Vote `json:"votes"`
	VotesLocked bool            `json:"votesLocked"`
	RoundScores map[string]int  `json:"roundScores"`
}

// Clone deep-copies the state so it can leave the owning goroutine.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s

	out.Comedians = make([]Comedian, len(s.Comedians))
	for i, c := range s.Comedians {
		cc := c
		cc.Stories = append([]Story(nil), c.Stories...)
		out.Comedians[i] = cc
	}

	out.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		pp := *p
		out.Players[id] = &pp
	}

	out.Votes = make(map[string]Vote, len(s.Votes))
	for id, v := range s.Votes {
		out.Votes[id] = v
	}

	out.RoundScores = make(map[string]int, len(s.RoundScores))
	for id, pts := range s.RoundScores {
		out.RoundScores[id] = pts
	}

	return &out
}
