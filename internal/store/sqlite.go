package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
)

// SQLiteStore is the default Store backend, a single SQLite file.
type SQLiteStore struct {
	sql    *sql.DB
	log    *logging.Logger
	notify *notifier
}

// OpenSQLite opens (or creates) a SQLite database at the given path and
// runs migrations. Use ":memory:" for an in-memory database (tests).
func OpenSQLite(path string, log *logging.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{sql: sqlDB, log: log.Sub("store"), notify: newNotifier()}

	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.log.Info().Str("path", path).Msg("database opened")
	return s, nil
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing database")
	s.notify.closeAll()
	return s.sql.Close()
}

func (s *SQLiteStore) CreateQuestion(ctx context.Context, q domain.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}

	now := time.Now().Format(time.DateTime)
	_, err = s.sql.ExecContext(ctx,
		`INSERT INTO questions (id, campaign_id, kind, text, options, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		q.ID, q.CampaignID, string(q.Kind), q.Text, string(optionsJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting question: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetActive(ctx context.Context, campaignID, questionID string) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE questions SET active = 0 WHERE campaign_id = ? AND active = 1`, campaignID); err != nil {
		tx.Rollback()
		return fmt.Errorf("deactivating previous: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE questions SET active = 1, updated_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), questionID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("activating question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.publish(ctx, campaignID)
	return nil
}

func (s *SQLiteStore) Deactivate(ctx context.Context, campaignID string) error {
	_, err := s.sql.ExecContext(ctx,
		`UPDATE questions SET active = 0 WHERE campaign_id = ? AND active = 1`, campaignID)
	if err != nil {
		return fmt.Errorf("deactivating: %w", err)
	}
	s.publish(ctx, campaignID)
	return nil
}

func (s *SQLiteStore) WriteSeedVotes(ctx context.Context, questionID string, votes []domain.OptionCount) error {
	campaign, err := s.campaignOf(ctx, questionID)
	if err != nil {
		return err
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE question_id = ?`, questionID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing votes: %w", err)
	}
	for _, oc := range votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO votes (question_id, option, votes) VALUES (?, ?, ?)`,
			questionID, oc.Option, oc.Votes); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing votes: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.publish(ctx, campaign)
	return nil
}

func (s *SQLiteStore) WriteSeedAnswers(ctx context.Context, questionID string, answers []domain.AnswerCount) error {
	campaign, err := s.campaignOf(ctx, questionID)
	if err != nil {
		return err
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = ?`, questionID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing answers: %w", err)
	}
	for _, ac := range answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (question_id, text, count) VALUES (?, ?, ?)`,
			questionID, ac.Text, ac.Count); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing answers: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.publish(ctx, campaign)
	return nil
}

func (s *SQLiteStore) RecordVote(ctx context.Context, questionID, option string) error {
	campaign, err := s.campaignOf(ctx, questionID)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx,
		`INSERT INTO votes (question_id, option, votes) VALUES (?, ?, 1)
		 ON CONFLICT (question_id, option) DO UPDATE SET votes = votes + 1`,
		questionID, option)
	if err != nil {
		return fmt.Errorf("recording vote: %w", err)
	}
	s.publish(ctx, campaign)
	return nil
}

func (s *SQLiteStore) RecordAnswer(ctx context.Context, questionID, text string) error {
	campaign, err := s.campaignOf(ctx, questionID)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx,
		`INSERT INTO answers (question_id, text, count) VALUES (?, ?, 1)
		 ON CONFLICT (question_id, text) DO UPDATE SET count = count + 1`,
		questionID, text)
	if err != nil {
		return fmt.Errorf("recording answer: %w", err)
	}
	s.publish(ctx, campaign)
	return nil
}

func (s *SQLiteStore) GetResults(ctx context.Context, questionID string) (domain.Results, error) {
	q, err := s.question(ctx, questionID)
	if err != nil {
		return domain.Results{}, err
	}

	res := domain.Results{QuestionID: questionID}
	if q.Kind == domain.KindPoll {
		counts := make(map[string]int)
		rows, err := s.sql.QueryContext(ctx,
			`SELECT option, votes FROM votes WHERE question_id = ?`, questionID)
		if err != nil {
			return res, fmt.Errorf("reading votes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var opt string
			var n int
			if err := rows.Scan(&opt, &n); err != nil {
				continue
			}
			counts[opt] = n
		}
		for _, opt := range q.Options {
			res.Votes = append(res.Votes, domain.OptionCount{Option: opt, Votes: counts[opt]})
			res.Total += counts[opt]
		}
		return res, nil
	}

	rows, err := s.sql.QueryContext(ctx,
		`SELECT text, count FROM answers WHERE question_id = ? ORDER BY count DESC, text`, questionID)
	if err != nil {
		return res, fmt.Errorf("reading answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ac domain.AnswerCount
		if err := rows.Scan(&ac.Text, &ac.Count); err != nil {
			continue
		}
		res.Answers = append(res.Answers, ac)
		res.Total += ac.Count
	}
	return res, nil
}

func (s *SQLiteStore) ActiveQuestion(ctx context.Context, campaignID string) (*domain.Question, error) {
	q, err := s.scanQuestion(s.sql.QueryRowContext(ctx,
		`SELECT id, campaign_id, kind, text, options, active, created_at, updated_at
		 FROM questions WHERE campaign_id = ? AND active = 1`, campaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading active question: %w", err)
	}
	return q, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, campaignID string) (<-chan Snapshot, error) {
	return s.notify.subscribe(ctx, campaignID), nil
}

func (s *SQLiteStore) question(ctx context.Context, id string) (*domain.Question, error) {
	q, err := s.scanQuestion(s.sql.QueryRowContext(ctx,
		`SELECT id, campaign_id, kind, text, options, active, created_at, updated_at
		 FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return q, err
}

func (s *SQLiteStore) scanQuestion(row *sql.Row) (*domain.Question, error) {
	var q domain.Question
	var kind, optionsJSON, createdAt, updatedAt string
	var active int
	err := row.Scan(&q.ID, &q.CampaignID, &kind, &q.Text, &optionsJSON, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	q.Kind = domain.QuestionKind(kind)
	q.Active = active == 1
	_ = json.Unmarshal([]byte(optionsJSON), &q.Options)
	q.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	q.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &q, nil
}

func (s *SQLiteStore) campaignOf(ctx context.Context, questionID string) (string, error) {
	var campaign string
	err := s.sql.QueryRowContext(ctx,
		`SELECT campaign_id FROM questions WHERE id = ?`, questionID).Scan(&campaign)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up question: %w", err)
	}
	return campaign, nil
}

// publish snapshots the campaign state and notifies in-process subscribers.
func (s *SQLiteStore) publish(ctx context.Context, campaignID string) {
	var snap Snapshot
	q, err := s.ActiveQuestion(ctx, campaignID)
	if err != nil {
		s.log.Warn().Err(err).Str("campaign", campaignID).Msg("snapshot read failed")
	}
	if q != nil {
		snap.Active = q
		if res, err := s.GetResults(ctx, q.ID); err == nil {
			snap.Results = &res
		}
	}
	s.notify.notify(campaignID, snap)
}

// sortAnswers keeps answer ordering deterministic for callers that build
// result views outside SQL.
func sortAnswers(answers []domain.AnswerCount) {
	sort.Slice(answers, func(i, j int) bool {
		if answers[i].Count != answers[j].Count {
			return answers[i].Count > answers[j].Count
		}
		return answers[i].Text < answers[j].Text
	})
}
