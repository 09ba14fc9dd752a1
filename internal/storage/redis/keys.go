package redis

import (
	"fmt"

	"github.com/mcoot/makeitmeme/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "mim"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// nicknameIndexKey returns the Redis key for the nickname -> player_id index
func nicknameIndexKey(nickname string) string {
	return fmt.Sprintf("%s:idx:nickname:%s", keyPrefix, model.NicknameKey(nickname))
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// sessionKey returns the Redis key for a Session
func sessionKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, code)
}

// sessionsIndexKey returns the Redis key for the SET of known session codes
func sessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

// submissionKey returns the Redis key for a Submission
func submissionKey(id model.SubmissionID) string {
	return fmt.Sprintf("%s:submission:%s", keyPrefix, id)
}

// pointsKey returns the Redis key holding a submission's running vote total
func pointsKey(id model.SubmissionID) string {
	return fmt.Sprintf("%s:points:%s", keyPrefix, id)
}

// submissionsIndexKey returns the Redis key for the SET of submissions in a session
func submissionsIndexKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:idx:submissions:%s", keyPrefix, code)
}

// voteKey returns the Redis key marking that a voter rated a submission
func voteKey(submissionID model.SubmissionID, voterID model.PlayerID) string {
	return fmt.Sprintf("%s:vote:%s:%s", keyPrefix, submissionID, voterID)
}

// votesIndexKey returns the Redis key for the LIST of votes cast in a session
func votesIndexKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:idx:votes:%s", keyPrefix, code)
}
