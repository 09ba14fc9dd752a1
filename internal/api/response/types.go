// Package response holds the JSON bodies returned by the API.
package response

import (
	"time"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/services/auth"
	"github.com/mcoot/makeitmeme/internal/services/session"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	IsGuest     bool   `json:"is_guest"`
	SessionCode string `json:"session_code,omitempty"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		Nickname:    p.Nickname,
		IsGuest:     p.IsGuest,
		SessionCode: string(p.SessionCode),
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsAdmin      bool      `json:"is_admin,omitempty"`
}

// NewAuthResponse creates an AuthResponse from a session and its player
func NewAuthResponse(s *auth.Session, p *model.Player, isAdmin bool) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(p),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
		IsAdmin:      isAdmin,
	}
}

// SessionConfig represents the rules of a session
type SessionConfig struct {
	MaxPlayers           int `json:"max_players"`
	Rounds               int `json:"rounds"`
	RoundDurationSeconds int `json:"round_duration_seconds"`
	TemplatesPerRound    int `json:"templates_per_round"`
}

// Session represents a session in API responses
type Session struct {
	Code         string        `json:"code"`
	Status       string        `json:"status"`
	Phase        string        `json:"phase,omitempty"`
	CreatorID    string        `json:"creator_id"`
	PlayerIDs    []string      `json:"player_ids"`
	CurrentRound int           `json:"current_round"`
	Config       SessionConfig `json:"config"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SessionFromModel converts a model.Session
func SessionFromModel(s *model.Session) Session {
	players := make([]string, len(s.PlayerIDs))
	for i, id := range s.PlayerIDs {
		players[i] = string(id)
	}
	return Session{
		Code:         string(s.Code),
		Status:       string(s.Status),
		Phase:        string(s.Phase),
		CreatorID:    string(s.CreatorID),
		PlayerIDs:    players,
		CurrentRound: s.CurrentRound,
		Config: SessionConfig{
			MaxPlayers:           s.Config.MaxPlayers,
			Rounds:               s.Config.Rounds,
			RoundDurationSeconds: int(s.Config.RoundDuration / time.Second),
			TemplatesPerRound:    s.Config.TemplatesPerRound,
		},
		CreatedAt: s.CreatedAt,
	}
}

// SessionPlayer is a member as listed in a snapshot
type SessionPlayer struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsCreator bool   `json:"is_creator"`
}

// Snapshot is a session as seen by the requesting player
type Snapshot struct {
	Code                 string          `json:"code"`
	Status               string          `json:"status"`
	Phase                string          `json:"phase,omitempty"`
	CreatorID            string          `json:"creator_id"`
	Players              []SessionPlayer `json:"players"`
	PlayerCount          int             `json:"player_count"`
	MaxPlayers           int             `json:"max_players"`
	CurrentRound         int             `json:"current_round"`
	TotalRounds          int             `json:"total_rounds"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
	CanStart             bool            `json:"can_start"`
	IsCreator            bool            `json:"is_creator"`
	IsMember             bool            `json:"is_member"`
	SubmittedCount       int             `json:"submitted_count"`
	AllSubmitted         bool            `json:"all_submitted"`
	HasSubmitted         bool            `json:"has_submitted"`
	TemplatesAvailable   int             `json:"templates_available"`
}

// SnapshotFromSession converts a session.Snapshot
func SnapshotFromSession(s *session.Snapshot) Snapshot {
	players := make([]SessionPlayer, len(s.Players))
	for i, p := range s.Players {
		players[i] = SessionPlayer{ID: string(p.ID), Nickname: p.Nickname, IsCreator: p.IsCreator}
	}
	return Snapshot{
		Code:                 string(s.Code),
		Status:               string(s.Status),
		Phase:                string(s.Phase),
		CreatorID:            string(s.CreatorID),
		Players:              players,
		PlayerCount:          len(players),
		MaxPlayers:           s.MaxPlayers,
		CurrentRound:         s.CurrentRound,
		TotalRounds:          s.TotalRounds,
		TimeRemainingSeconds: int((s.TimeRemaining + time.Second - 1) / time.Second),
		CanStart:             s.CanStart,
		IsCreator:            s.IsCreator,
		IsMember:             s.IsMember,
		SubmittedCount:       s.SubmittedCount,
		AllSubmitted:         s.AllSubmitted,
		HasSubmitted:         s.HasSubmitted,
		TemplatesAvailable:   s.TemplatesAvailable,
	}
}

// Submission represents a player's templated entry
type Submission struct {
	ID          string   `json:"id"`
	PlayerID    string   `json:"player_id"`
	TemplateID  string   `json:"template_id"`
	Round       int      `json:"round"`
	Texts       []string `json:"texts"`
	Selected    bool     `json:"selected"`
	TotalPoints int      `json:"total_points"`
}

// SubmissionFromModel converts a model.Submission
func SubmissionFromModel(s *model.Submission) Submission {
	return Submission{
		ID:          string(s.ID),
		PlayerID:    string(s.PlayerID),
		TemplateID:  string(s.TemplateID),
		Round:       s.Round,
		Texts:       s.Texts[:],
		Selected:    s.Selected,
		TotalPoints: s.TotalPoints,
	}
}

// SubmissionsFromModel converts a list of submissions
func SubmissionsFromModel(subs []*model.Submission) []Submission {
	out := make([]Submission, len(subs))
	for i, s := range subs {
		out[i] = SubmissionFromModel(s)
	}
	return out
}

// Entry is a finalized submission shown for voting
type Entry struct {
	Submission Submission `json:"submission"`
	Nickname   string     `json:"nickname"`
	VotedOn    bool       `json:"voted_on"`
}

// EntriesFromSession converts round entries
func EntriesFromSession(entries []session.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{
			Submission: SubmissionFromModel(e.Submission),
			Nickname:   e.Nickname,
			VotedOn:    e.VotedOn,
		}
	}
	return out
}

// PodiumEntry is a ranked submission
type PodiumEntry struct {
	Rank       int        `json:"rank"`
	Submission Submission `json:"submission"`
	Nickname   string     `json:"nickname"`
}

// PodiumFromSession converts the final ranking
func PodiumFromSession(podium []session.PodiumEntry) []PodiumEntry {
	out := make([]PodiumEntry, len(podium))
	for i, e := range podium {
		out[i] = PodiumEntry{
			Rank:       e.Rank,
			Submission: SubmissionFromModel(e.Submission),
			Nickname:   e.Nickname,
		}
	}
	return out
}

// Vote is the result of a cast vote
type Vote struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Category     string `json:"category"`
	Points       int    `json:"points"`
	TotalPoints  int    `json:"total_points"`
}

// VoteFromModel converts a recorded vote and the submission's new total
func VoteFromModel(v *model.Vote, total int) Vote {
	return Vote{
		ID:           v.ID,
		SubmissionID: string(v.SubmissionID),
		Category:     string(v.Category),
		Points:       v.Points,
		TotalPoints:  total,
	}
}

// TextBox is a caption region of a template
type TextBox struct {
	Label    string  `json:"label"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize int     `json:"font_size"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Template represents a caption template
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ImageRef    string    `json:"image_ref"`
	ImageWidth  int       `json:"image_width"`
	ImageHeight int       `json:"image_height"`
	TextBoxes   []TextBox `json:"text_boxes"`
}

// TemplatesFromModel converts templates, listing only the boxes in use
func TemplatesFromModel(templates []model.Template) []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		boxes := t.Boxes()
		tb := make([]TextBox, len(boxes))
		for j, b := range boxes {
			tb[j] = TextBox{Label: b.Label, X: b.X, Y: b.Y, FontSize: b.FontSize, Width: b.Width, Height: b.Height}
		}
		out[i] = Template{
			ID:          string(t.ID),
			Name:        t.Name,
			ImageRef:    t.ImageRef,
			ImageWidth:  t.ImageWidth,
			ImageHeight: t.ImageHeight,
			TextBoxes:   tb,
		}
	}
	return out
}
