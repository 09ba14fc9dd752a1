package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	// Register database/sql drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// Store is a database/sql implementation of the storage interface,
// backed by SQLite or PostgreSQL
type Store struct {
	db     *sql.DB
	driver string
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// Open connects to the database and creates the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	store, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database, creating the schema if needed
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	if err := CreateSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return rebind(s.driver, query)
}

// Player operations

const playerColumns = `id, nickname, is_guest, session_code, created_at`

func (s *Store) CreatePlayer(ctx context.Context, player *model.Player) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO players (id, nickname, nickname_key, is_guest, session_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`),
		string(player.ID), player.Nickname, model.NicknameKey(player.Nickname), player.IsGuest,
		string(player.SessionCode), toMillis(player.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	if n == 0 {
		return model.ErrNicknameTaken
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+playerColumns+` FROM players WHERE id = ?`), string(id))
	return scanPlayer(row)
}

func (s *Store) GetPlayerByNickname(ctx context.Context, nickname string) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+playerColumns+` FROM players WHERE nickname_key = ?`), model.NicknameKey(nickname))
	return scanPlayer(row)
}

func scanPlayer(row *sql.Row) (*model.Player, error) {
	var (
		p         model.Player
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Nickname, &p.IsGuest, &p.SessionCode, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM players WHERE id = ?`), string(id)); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

// Registered player operations

func (s *Store) CreateRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO registered_players (player_id, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`),
		string(rp.PlayerID), rp.Username, rp.PasswordHash, toMillis(rp.CreatedAt), toMillis(rp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert registered player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert registered player: %w", err)
	}
	if n == 0 {
		return model.ErrUsernameTaken
	}
	return nil
}

func (s *Store) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT player_id, username, password_hash, created_at, updated_at
		FROM registered_players WHERE player_id = ?`), string(playerID))
	return scanRegisteredPlayer(row)
}

func (s *Store) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT player_id, username, password_hash, created_at, updated_at
		FROM registered_players WHERE username = ?`), username)
	return scanRegisteredPlayer(row)
}

func scanRegisteredPlayer(row *sql.Row) (*model.RegisteredPlayer, error) {
	var (
		rp                   model.RegisteredPlayer
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rp.PlayerID, &rp.Username, &rp.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scan registered player: %w", err)
	}
	rp.CreatedAt = fromMillis(createdAt)
	rp.UpdatedAt = fromMillis(updatedAt)
	return &rp, nil
}

// Session operations

func (s *Store) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data FROM sessions WHERE code = ?`), string(code)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *Store) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM sessions WHERE code = ?`), string(code)).Scan(&n); err != nil {
		return false, fmt.Errorf("count sessions: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListSessionCodes(ctx context.Context) ([]model.SessionCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM sessions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var codes []model.SessionCode
	for rows.Next() {
		var code model.SessionCode
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan session code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Submission operations

const submissionColumns = `id, session_code, player_id, template_id, round, texts, selected, total_points, created_at, updated_at`

func (s *Store) GetSubmission(ctx context.Context, id model.SubmissionID) (*model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`), string(id))
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	subs, err := scanSubmissions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, model.ErrSubmissionNotFound
	}
	return subs[0], nil
}

func (s *Store) ListSubmissions(ctx context.Context, code model.SessionCode, round int) ([]*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE session_code = ?`
	args := []any{string(code)}
	if round != 0 {
		query += ` AND round = ?`
		args = append(args, round)
	}
	query += ` ORDER BY round, created_at, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]*model.Submission, error) {
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		var (
			sub                  model.Submission
			texts                string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&sub.ID, &sub.SessionCode, &sub.PlayerID, &sub.TemplateID, &sub.Round,
			&texts, &sub.Selected, &sub.TotalPoints, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(texts), &sub.Texts); err != nil {
			return nil, fmt.Errorf("decode submission texts: %w", err)
		}
		sub.CreatedAt = fromMillis(createdAt)
		sub.UpdatedAt = fromMillis(updatedAt)
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// Vote operations

func (s *Store) RecordVote(ctx context.Context, vote *model.Vote) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin vote: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM submissions WHERE id = ?`), string(vote.SubmissionID)).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check submission: %w", err)
	}
	if exists == 0 {
		return 0, model.ErrSubmissionNotFound
	}

	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO votes (id, session_code, round, voter_id, submission_id, category, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`),
		vote.ID, string(vote.SessionCode), vote.Round, string(vote.VoterID), string(vote.SubmissionID),
		string(vote.Category), vote.Points, toMillis(vote.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert vote: %w", err)
	}
	if n == 0 {
		return 0, model.ErrDuplicateVote
	}

	var total int
	if err := tx.QueryRowContext(ctx, s.q(`
		UPDATE submissions SET total_points = total_points + ?
		WHERE id = ? RETURNING total_points`),
		vote.Points, string(vote.SubmissionID),
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("add vote points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vote: %w", err)
	}
	return total, nil
}

func (s *Store) ListVotes(ctx context.Context, code model.SessionCode, round int) ([]*model.Vote, error) {
	query := `SELECT id, session_code, round, voter_id, submission_id, category, points, created_at
		FROM votes WHERE session_code = ?`
	args := []any{string(code)}
	if round != 0 {
		query += ` AND round = ?`
		args = append(args, round)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []*model.Vote
	for rows.Next() {
		var (
			vote      model.Vote
			createdAt int64
		)
		if err := rows.Scan(&vote.ID, &vote.SessionCode, &vote.Round, &vote.VoterID,
			&vote.SubmissionID, &vote.Category, &vote.Points, &createdAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		vote.CreatedAt = fromMillis(createdAt)
		votes = append(votes, &vote)
	}
	return votes, rows.Err()
}

// Update applies staged writes inside a database transaction
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	batch := storage.NewBatch()
	if err := fn(batch); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	for _, op := range batch.Ops() {
		if err := s.applyOp(ctx, tx, op); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *Store) applyOp(ctx context.Context, tx *sql.Tx, op storage.Op) error {
	switch op.Kind {
	case storage.OpSaveSession:
		data, err := json.Marshal(op.Session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO sessions (code, status, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (code) DO UPDATE SET
				status = excluded.status,
				data = excluded.data,
				updated_at = excluded.updated_at`),
			string(op.Code), string(op.Session.Status), string(data),
			toMillis(op.Session.CreatedAt), toMillis(op.Session.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}

	case storage.OpDeleteSession:
		for _, stmt := range []string{
			`DELETE FROM votes WHERE session_code = ?`,
			`DELETE FROM submissions WHERE session_code = ?`,
			`DELETE FROM sessions WHERE code = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.q(stmt), string(op.Code)); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}

	case storage.OpSavePlayer:
		p := op.Player
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO players (id, nickname, nickname_key, is_guest, session_code, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				nickname = excluded.nickname,
				nickname_key = excluded.nickname_key,
				is_guest = excluded.is_guest,
				session_code = excluded.session_code`),
			string(p.ID), p.Nickname, model.NicknameKey(p.Nickname), p.IsGuest, string(p.SessionCode), toMillis(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("save player: %w", err)
		}

	case storage.OpSaveSubmission:
		sub := op.Submission
		texts, err := json.Marshal(sub.Texts)
		if err != nil {
			return fmt.Errorf("encode submission texts: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO submissions (`+submissionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				template_id = excluded.template_id,
				texts = excluded.texts,
				selected = excluded.selected,
				updated_at = excluded.updated_at`),
			string(sub.ID), string(sub.SessionCode), string(sub.PlayerID), string(sub.TemplateID), sub.Round,
			string(texts), sub.Selected, toMillis(sub.CreatedAt), toMillis(sub.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save submission: %w", err)
		}
	}
	return nil
}
