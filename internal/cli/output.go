package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintf(o.w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Session:
		o.printSession(v)
	case Snapshot:
		o.printSnapshot(v)
	case []Submission:
		o.printSubmissions(v)
	case Submission:
		o.printSubmissions([]Submission{v})
	case []Entry:
		o.printEntries(v)
	case Vote:
		o.printVote(v)
	case []PodiumEntry:
		o.printPodium(v)
	case []Template:
		o.printTemplates(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	IsGuest     bool   `json:"is_guest"`
	SessionCode string `json:"session_code,omitempty"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// SessionConfig response type
type SessionConfig struct {
	MaxPlayers           int `json:"max_players"`
	Rounds               int `json:"rounds"`
	RoundDurationSeconds int `json:"round_duration_seconds"`
	TemplatesPerRound    int `json:"templates_per_round"`
}

// Session response type
type Session struct {
	Code         string        `json:"code"`
	Status       string        `json:"status"`
	Phase        string        `json:"phase,omitempty"`
	CreatorID    string        `json:"creator_id"`
	PlayerIDs    []string      `json:"player_ids"`
	CurrentRound int           `json:"current_round"`
	Config       SessionConfig `json:"config"`
}

// SessionPlayer response type
type SessionPlayer struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsCreator bool   `json:"is_creator"`
}

// Snapshot response type
type Snapshot struct {
	Code                 string          `json:"code"`
	Status               string          `json:"status"`
	Phase                string          `json:"phase,omitempty"`
	Players              []SessionPlayer `json:"players"`
	PlayerCount          int             `json:"player_count"`
	MaxPlayers           int             `json:"max_players"`
	CurrentRound         int             `json:"current_round"`
	TotalRounds          int             `json:"total_rounds"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
	CanStart             bool            `json:"can_start"`
	SubmittedCount       int             `json:"submitted_count"`
	AllSubmitted         bool            `json:"all_submitted"`
	HasSubmitted         bool            `json:"has_submitted"`
	TemplatesAvailable   int             `json:"templates_available"`
}

// Submission response type
type Submission struct {
	ID          string   `json:"id"`
	PlayerID    string   `json:"player_id"`
	TemplateID  string   `json:"template_id"`
	Round       int      `json:"round"`
	Texts       []string `json:"texts"`
	Selected    bool     `json:"selected"`
	TotalPoints int      `json:"total_points"`
}

// Entry response type
type Entry struct {
	Submission Submission `json:"submission"`
	Nickname   string     `json:"nickname"`
	VotedOn    bool       `json:"voted_on"`
}

// PodiumEntry response type
type PodiumEntry struct {
	Rank       int        `json:"rank"`
	Submission Submission `json:"submission"`
	Nickname   string     `json:"nickname"`
}

// Vote response type
type Vote struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Category     string `json:"category"`
	Points       int    `json:"points"`
	TotalPoints  int    `json:"total_points"`
}

// TextBox response type
type TextBox struct {
	Label string `json:"label"`
}

// Template response type
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageRef  string    `json:"image_ref"`
	TextBoxes []TextBox `json:"text_boxes"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Nickname, p.ID)
	fmt.Fprintf(o.w, "Guest: %s\n", guestStr)
	if p.SessionCode != "" {
		fmt.Fprintf(o.w, "Session: %s\n", p.SessionCode)
	}
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	if a.IsAdmin {
		fmt.Fprintln(o.w, "Admin: yes")
	}
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
}

func (o *Output) printSession(s Session) {
	fmt.Fprintf(o.w, "Session: %s\n", s.Code)
	fmt.Fprintf(o.w, "Status: %s\n", s.Status)
	if s.CurrentRound > 0 {
		fmt.Fprintf(o.w, "Round: %d/%d (%s)\n", s.CurrentRound, s.Config.Rounds, s.Phase)
	}
	fmt.Fprintf(o.w, "Players: %d/%d\n", len(s.PlayerIDs), s.Config.MaxPlayers)
}

func (o *Output) printSnapshot(s Snapshot) {
	fmt.Fprintf(o.w, "Session: %s\n", s.Code)
	fmt.Fprintf(o.w, "Status: %s\n", s.Status)
	switch s.Status {
	case "waiting":
		fmt.Fprintf(o.w, "Starts in: %ds\n", s.TimeRemainingSeconds)
		if s.CanStart {
			fmt.Fprintln(o.w, "You can start the game")
		}
	case "started":
		fmt.Fprintf(o.w, "Round: %d/%d (%s)\n", s.CurrentRound, s.TotalRounds, s.Phase)
		if s.Phase == "playing" {
			fmt.Fprintf(o.w, "Time left: %ds\n", s.TimeRemainingSeconds)
		}
		fmt.Fprintf(o.w, "Submitted: %d/%d\n", s.SubmittedCount, s.PlayerCount)
	}
	fmt.Fprintf(o.w, "Players (%d/%d):\n", s.PlayerCount, s.MaxPlayers)
	for _, p := range s.Players {
		creatorStr := ""
		if p.IsCreator {
			creatorStr = " [creator]"
		}
		fmt.Fprintf(o.w, "  - %s (%s)%s\n", p.Nickname, p.ID, creatorStr)
	}
}

func (o *Output) printSubmissions(subs []Submission) {
	for _, s := range subs {
		status := ""
		if s.Selected {
			status = " [submitted]"
		}
		fmt.Fprintf(o.w, "%s  template=%s%s\n", s.ID, s.TemplateID, status)
		if texts := filled(s.Texts); texts != "" {
			fmt.Fprintf(o.w, "    %s\n", texts)
		}
	}
}

func (o *Output) printEntries(entries []Entry) {
	for _, e := range entries {
		voted := ""
		if e.VotedOn {
			voted = " [voted]"
		}
		fmt.Fprintf(o.w, "%s by %s: %d pts%s\n", e.Submission.ID, e.Nickname, e.Submission.TotalPoints, voted)
		fmt.Fprintf(o.w, "    %s\n", filled(e.Submission.Texts))
	}
}

func (o *Output) printVote(v Vote) {
	fmt.Fprintf(o.w, "Voted %s (+%d) on %s\n", v.Category, v.Points, v.SubmissionID)
	fmt.Fprintf(o.w, "Total: %d pts\n", v.TotalPoints)
}

func (o *Output) printPodium(podium []PodiumEntry) {
	for _, e := range podium {
		fmt.Fprintf(o.w, "%d. %s - %d pts (round %d)\n", e.Rank, e.Nickname, e.Submission.TotalPoints, e.Submission.Round)
		fmt.Fprintf(o.w, "    %s\n", filled(e.Submission.Texts))
	}
}

func (o *Output) printTemplates(templates []Template) {
	for _, t := range templates {
		fmt.Fprintf(o.w, "%s  %s (%d boxes)\n", t.ID, t.Name, len(t.TextBoxes))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

// filled joins the non-empty captions
func filled(texts []string) string {
	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, fmt.Sprintf("%q", t))
		}
	}
	return strings.Join(parts, " / ")
}
