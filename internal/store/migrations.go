package store

import "fmt"

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create questions, votes and answers",
		SQL: `
			CREATE TABLE questions (
				id           TEXT PRIMARY KEY,
				campaign_id  TEXT NOT NULL,
				kind         TEXT NOT NULL,
				text         TEXT NOT NULL,
				options      TEXT NOT NULL DEFAULT '[]',
				active       INTEGER NOT NULL DEFAULT 0,
				created_at   TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_questions_campaign ON questions (campaign_id);
			CREATE UNIQUE INDEX idx_questions_active ON questions (campaign_id) WHERE active = 1;

			CREATE TABLE votes (
				question_id  TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				option       TEXT NOT NULL,
				votes        INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (question_id, option)
			);

			CREATE TABLE answers (
				question_id  TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				text         TEXT NOT NULL,
				count        INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (question_id, text)
			);
		`,
	},
}

// migrate runs all pending migrations.
func (s *SQLiteStore) migrate() error {
	if _, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.isMigrationApplied(m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		s.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := s.sql.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) isMigrationApplied(version int) (bool, error) {
	var count int
	err := s.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}
