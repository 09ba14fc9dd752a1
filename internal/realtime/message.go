// Package realtime pushes session events to connected clients over SSE,
// websockets and, across instances, NATS.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcoot/makeitmeme/internal/model"
)

// Message is an encoded event ready for delivery to a session's clients
type Message struct {
	Type        string
	SessionCode model.SessionCode
	Data        []byte // JSON body of the event
}

type wireEvent struct {
	Type        string    `json:"type"`
	SessionCode string    `json:"session_code"`
	Round       int       `json:"round"`
	PlayerID    string    `json:"player_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload,omitempty"`
}

type updatePayload struct {
	Reason string `json:"reason"`
}

type gameStartedPayload struct {
	Players            []string `json:"players"`
	TemplatesPerPlayer int      `json:"templates_per_player"`
}

type roundEndedPayload struct {
	SubmittedCount int  `json:"submitted_count"`
	AllSubmitted   bool `json:"all_submitted"`
}

type gameFinishedPayload struct {
	Rounds int `json:"rounds"`
}

// Encode converts a domain event into its wire form
func Encode(event model.Event) (Message, error) {
	data, err := json.Marshal(wireEvent{
		Type:        string(event.Type),
		SessionCode: string(event.SessionCode),
		Round:       event.Round,
		PlayerID:    string(event.PlayerID),
		Timestamp:   event.Timestamp,
		Payload:     wirePayload(event.Payload),
	})
	if err != nil {
		return Message{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return Message{
		Type:        string(event.Type),
		SessionCode: event.SessionCode,
		Data:        data,
	}, nil
}

// Decode reads a message produced by Encode, typically from another instance
func Decode(data []byte) (Message, error) {
	var header struct {
		Type        string `json:"type"`
		SessionCode string `json:"session_code"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Message{}, fmt.Errorf("decode event: %w", err)
	}
	code := model.SessionCode(header.SessionCode)
	if header.Type == "" || !code.Valid() {
		return Message{}, fmt.Errorf("decode event: missing type or session code")
	}
	return Message{Type: header.Type, SessionCode: code, Data: data}, nil
}

func wirePayload(payload any) any {
	switch p := payload.(type) {
	case model.UpdatePayload:
		return updatePayload{Reason: p.Reason}
	case model.GameStartedPayload:
		players := make([]string, len(p.Players))
		for i, id := range p.Players {
			players[i] = string(id)
		}
		return gameStartedPayload{Players: players, TemplatesPerPlayer: p.TemplatesPerPlayer}
	case model.RoundEndedPayload:
		return roundEndedPayload{SubmittedCount: p.SubmittedCount, AllSubmitted: p.AllSubmitted}
	case model.GameFinishedPayload:
		return gameFinishedPayload{Rounds: p.Rounds}
	default:
		return p
	}
}
