package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventGameStarted      EventType = "game_started"
	EventRoundEnded       EventType = "round_ended"
	EventAllSubmitted     EventType = "all_submitted"
	EventNextRoundStarted EventType = "next_round_started"
	EventGameFinished     EventType = "game_finished"
	EventSessionCancelled EventType = "session_cancelled"
	EventUpdate           EventType = "update" // generic "something changed, refetch"
)

// Reasons carried by update events
const (
	ReasonPlayerJoined    = "player_joined"
	ReasonPlayerLeft      = "player_left"
	ReasonVoteCast        = "vote_cast"
	ReasonSessionArchived = "session_archived"
)

// Event notifies clients of a session that its state changed.
// Events are hints to refetch a snapshot, never the state itself.
type Event struct {
	Type        EventType
	SessionCode SessionCode
	Round       int
	PlayerID    PlayerID // the player who triggered the event, if any
	Timestamp   time.Time
	Payload     any
}

// UpdatePayload describes why an update event was sent
type UpdatePayload struct {
	Reason string
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	Players            []PlayerID
	TemplatesPerPlayer int
}

// RoundEndedPayload contains data for round ended events
type RoundEndedPayload struct {
	SubmittedCount int
	AllSubmitted   bool
}

// GameFinishedPayload contains data for game finished events
type GameFinishedPayload struct {
	Rounds int
}
