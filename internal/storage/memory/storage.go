package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	nicknameIndex     map[string]model.PlayerID
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	sessions          map[model.SessionCode]*model.Session
	submissions       map[model.SubmissionID]*model.Submission
	votes             map[voteKey]*model.Vote
}

type voteKey struct {
	voterID      model.PlayerID
	submissionID model.SubmissionID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		nicknameIndex:     make(map[string]model.PlayerID),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		sessions:          make(map[model.SessionCode]*model.Session),
		submissions:       make(map[model.SubmissionID]*model.Submission),
		votes:             make(map[voteKey]*model.Vote),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.NicknameKey(player.Nickname)
	if _, taken := s.nicknameIndex[key]; taken {
		return model.ErrNicknameTaken
	}
	s.players[player.ID] = player.Clone()
	s.nicknameIndex[key] = player.ID
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player.Clone(), nil
}

func (s *Storage) GetPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nicknameIndex[model.NicknameKey(nickname)]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.players[id].Clone(), nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[id]; ok {
		delete(s.nicknameIndex, model.NicknameKey(player.Nickname))
		delete(s.players, id)
	}
	return nil
}

// Registered player operations

func (s *Storage) CreateRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usernameIndex[rp.Username]; taken {
		return model.ErrUsernameTaken
	}
	c := *rp
	s.registeredPlayers[rp.PlayerID] = &c
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *rp
	return &c, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	playerID, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetRegisteredPlayer(ctx, playerID)
}

// Session operations

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[code]
	return ok, nil
}

func (s *Storage) ListSessionCodes(ctx context.Context) ([]model.SessionCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]model.SessionCode, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes, nil
}

// Submission operations

func (s *Storage) GetSubmission(ctx context.Context, id model.SubmissionID) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, model.ErrSubmissionNotFound
	}
	return sub.Clone(), nil
}

func (s *Storage) ListSubmissions(ctx context.Context, code model.SessionCode, round int) ([]*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []*model.Submission
	for _, sub := range s.submissions {
		if sub.SessionCode != code || (round != 0 && sub.Round != round) {
			continue
		}
		subs = append(subs, sub.Clone())
	}
	storage.SortSubmissions(subs)
	return subs, nil
}

// Vote operations

func (s *Storage) RecordVote(ctx context.Context, vote *model.Vote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[vote.SubmissionID]
	if !ok {
		return 0, model.ErrSubmissionNotFound
	}
	key := voteKey{voterID: vote.VoterID, submissionID: vote.SubmissionID}
	if _, voted := s.votes[key]; voted {
		return 0, model.ErrDuplicateVote
	}
	c := *vote
	s.votes[key] = &c
	sub.TotalPoints += vote.Points
	return sub.TotalPoints, nil
}

func (s *Storage) ListVotes(ctx context.Context, code model.SessionCode, round int) ([]*model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var votes []*model.Vote
	for _, vote := range s.votes {
		if vote.SessionCode != code || (round != 0 && vote.Round != round) {
			continue
		}
		c := *vote
		votes = append(votes, &c)
	}
	storage.SortVotes(votes)
	return votes, nil
}

// Update applies staged writes under a single lock acquisition
func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	batch := storage.NewBatch()
	if err := fn(batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range batch.Ops() {
		switch op.Kind {
		case storage.OpSaveSession:
			s.sessions[op.Code] = op.Session
		case storage.OpDeleteSession:
			s.deleteSessionLocked(op.Code)
		case storage.OpSavePlayer:
			if existing, ok := s.players[op.Player.ID]; ok && existing.Nickname != op.Player.Nickname {
				delete(s.nicknameIndex, model.NicknameKey(existing.Nickname))
			}
			s.players[op.Player.ID] = op.Player
			s.nicknameIndex[model.NicknameKey(op.Player.Nickname)] = op.Player.ID
		case storage.OpSaveSubmission:
			if existing, ok := s.submissions[op.Submission.ID]; ok {
				op.Submission.TotalPoints = existing.TotalPoints
			}
			s.submissions[op.Submission.ID] = op.Submission
		}
	}
	return nil
}

func (s *Storage) deleteSessionLocked(code model.SessionCode) {
	delete(s.sessions, code)
	for id, sub := range s.submissions {
		if sub.SessionCode == code {
			delete(s.submissions, id)
		}
	}
	for key, vote := range s.votes {
		if vote.SessionCode == code {
			delete(s.votes, key)
		}
	}
}
