package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) playerTTL(player *model.Player) time.Duration {
	if player.IsGuest {
		return s.cfg.GuestPlayerTTL
	}
	return 0
}

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	ttl := s.playerTTL(player)
	claimed, err := s.client.SetNX(ctx, nicknameIndexKey(player.Nickname), string(player.ID), ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrNicknameTaken
	}

	if err := s.client.Set(ctx, playerKey(player.ID), data, ttl).Err(); err != nil {
		// Release the nickname so a retry can claim it
		_ = s.client.Del(ctx, nicknameIndexKey(player.Nickname)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) GetPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error) {
	playerIDStr, err := s.client.Get(ctx, nicknameIndexKey(nickname)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetPlayer(ctx, model.PlayerID(playerIDStr))
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	player, err := s.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.Del(ctx, playerKey(id), nicknameIndexKey(player.Nickname)).Err()
}

// Registered player operations

func (s *Storage) CreateRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	claimed, err := s.client.SetNX(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrUsernameTaken
	}
	return s.client.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0).Err()
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, registeredPlayerKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	// Look up player ID from username index
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

// Session operations

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// ListSessionCodes returns live session codes, pruning codes whose session expired
func (s *Storage) ListSessionCodes(ctx context.Context) ([]model.SessionCode, error) {
	members, err := s.client.SMembers(ctx, sessionsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		checks[i] = pipe.Exists(ctx, sessionKey(model.SessionCode(member)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	codes := make([]model.SessionCode, 0, len(members))
	var stale []any
	for i, member := range members {
		if checks[i].Val() > 0 {
			codes = append(codes, model.SessionCode(member))
		} else {
			stale = append(stale, member)
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, sessionsIndexKey(), stale...).Err(); err != nil {
			return nil, err
		}
	}
	slices.Sort(codes)
	return codes, nil
}

// Submission operations

func (s *Storage) GetSubmission(ctx context.Context, id model.SubmissionID) (*model.Submission, error) {
	pipe := s.client.Pipeline()
	dataCmd := pipe.Get(ctx, submissionKey(id))
	pointsCmd := pipe.Get(ctx, pointsKey(id))
	// redis.Nil from either command is handled per command below
	_, _ = pipe.Exec(ctx)

	data, err := dataCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSubmissionNotFound
		}
		return nil, err
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	sub.TotalPoints, err = parsePoints(pointsCmd.Val(), pointsCmd.Err())
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Storage) ListSubmissions(ctx context.Context, code model.SessionCode, round int) ([]*model.Submission, error) {
	ids, err := s.client.SMembers(ctx, submissionsIndexKey(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	dataKeys := make([]string, len(ids))
	pointKeys := make([]string, len(ids))
	for i, id := range ids {
		dataKeys[i] = submissionKey(model.SubmissionID(id))
		pointKeys[i] = pointsKey(model.SubmissionID(id))
	}

	pipe := s.client.Pipeline()
	dataCmd := pipe.MGet(ctx, dataKeys...)
	pointsCmd := pipe.MGet(ctx, pointKeys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	points := pointsCmd.Val()
	var subs []*model.Submission
	for i, raw := range dataCmd.Val() {
		str, ok := raw.(string)
		if !ok {
			continue // expired
		}
		var sub model.Submission
		if err := json.Unmarshal([]byte(str), &sub); err != nil {
			return nil, err
		}
		if round != 0 && sub.Round != round {
			continue
		}
		if p, ok := points[i].(string); ok {
			if sub.TotalPoints, err = strconv.Atoi(p); err != nil {
				return nil, err
			}
		}
		subs = append(subs, &sub)
	}
	storage.SortSubmissions(subs)
	return subs, nil
}

func parsePoints(val string, err error) (int, error) {
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// Vote operations

// recordVoteScript claims the voter/submission pair and adds the points in one step.
// Returns -2 when the submission is missing and -1 when the vote already exists.
var recordVoteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[4]) == 0 then
  return -2
end
if redis.call('SETNX', KEYS[1], '1') == 0 then
  return -1
end
redis.call('RPUSH', KEYS[2], ARGV[1])
local total = redis.call('INCRBY', KEYS[3], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
  redis.call('EXPIRE', KEYS[3], ttl)
end
return total
`)

func (s *Storage) RecordVote(ctx context.Context, vote *model.Vote) (int, error) {
	data, err := json.Marshal(vote)
	if err != nil {
		return 0, err
	}

	keys := []string{
		voteKey(vote.SubmissionID, vote.VoterID),
		votesIndexKey(vote.SessionCode),
		pointsKey(vote.SubmissionID),
		submissionKey(vote.SubmissionID),
	}
	total, err := recordVoteScript.Run(ctx, s.client, keys, data, vote.Points, int64(s.cfg.SessionTTL.Seconds())).Int()
	if err != nil {
		return 0, err
	}
	switch total {
	case -2:
		return 0, model.ErrSubmissionNotFound
	case -1:
		return 0, model.ErrDuplicateVote
	}
	return total, nil
}

func (s *Storage) ListVotes(ctx context.Context, code model.SessionCode, round int) ([]*model.Vote, error) {
	entries, err := s.client.LRange(ctx, votesIndexKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var votes []*model.Vote
	for _, entry := range entries {
		var vote model.Vote
		if err := json.Unmarshal([]byte(entry), &vote); err != nil {
			return nil, err
		}
		if round != 0 && vote.Round != round {
			continue
		}
		votes = append(votes, &vote)
	}
	storage.SortVotes(votes)
	return votes, nil
}

// Update applies staged writes in a single MULTI/EXEC block.
// Keys owned by deleted sessions are resolved before the block is sent.
func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	batch := storage.NewBatch()
	if err := fn(batch); err != nil {
		return err
	}

	cascades := make(map[model.SessionCode][]string)
	for _, op := range batch.Ops() {
		if op.Kind == storage.OpDeleteSession {
			keys, err := s.sessionOwnedKeys(ctx, op.Code)
			if err != nil {
				return err
			}
			cascades[op.Code] = keys
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range batch.Ops() {
			if err := s.queueOp(ctx, pipe, op, cascades); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (s *Storage) queueOp(ctx context.Context, pipe redis.Pipeliner, op storage.Op, cascades map[model.SessionCode][]string) error {
	switch op.Kind {
	case storage.OpSaveSession:
		data, err := json.Marshal(op.Session)
		if err != nil {
			return err
		}
		pipe.Set(ctx, sessionKey(op.Code), data, s.cfg.SessionTTL)
		pipe.SAdd(ctx, sessionsIndexKey(), string(op.Code))

	case storage.OpDeleteSession:
		pipe.Del(ctx, cascades[op.Code]...)
		pipe.SRem(ctx, sessionsIndexKey(), string(op.Code))

	case storage.OpSavePlayer:
		data, err := json.Marshal(op.Player)
		if err != nil {
			return err
		}
		ttl := s.playerTTL(op.Player)
		pipe.Set(ctx, playerKey(op.Player.ID), data, ttl)
		pipe.Set(ctx, nicknameIndexKey(op.Player.Nickname), string(op.Player.ID), ttl)

	case storage.OpSaveSubmission:
		sub := op.Submission.Clone()
		sub.TotalPoints = 0 // tracked under pointsKey
		data, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		indexKey := submissionsIndexKey(sub.SessionCode)
		pipe.Set(ctx, submissionKey(sub.ID), data, s.cfg.SessionTTL)
		pipe.SAdd(ctx, indexKey, string(sub.ID))
		if s.cfg.SessionTTL > 0 {
			pipe.Expire(ctx, indexKey, s.cfg.SessionTTL)
		}
	}
	return nil
}

// sessionOwnedKeys lists every key removed along with a session
func (s *Storage) sessionOwnedKeys(ctx context.Context, code model.SessionCode) ([]string, error) {
	keys := []string{sessionKey(code), submissionsIndexKey(code), votesIndexKey(code)}

	ids, err := s.client.SMembers(ctx, submissionsIndexKey(code)).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		keys = append(keys, submissionKey(model.SubmissionID(id)), pointsKey(model.SubmissionID(id)))
	}

	votes, err := s.ListVotes(ctx, code, 0)
	if err != nil {
		return nil, err
	}
	for _, vote := range votes {
		keys = append(keys, voteKey(vote.SubmissionID, vote.VoterID))
	}
	return keys, nil
}
