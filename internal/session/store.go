package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"sublime/internal/subtitle"
)

// ErrCueNotFound indicates a lookup for a cue id that is not loaded.
var ErrCueNotFound = errors.New("cue not found")

// ErrLengthMismatch indicates a commit whose text count does not match the
// number of loaded cues. The commit is rejected wholesale.
var ErrLengthMismatch = errors.New("text count does not match cue count")

// Store manages the cues of one loaded subtitle document.
type Store struct {
	db *sql.DB
}

// Open creates an empty in-memory cue store.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A :memory: database exists per connection. Pin the pool to one
	// connection so every query sees the same data.
	db.SetMaxOpenConns(1)

	schema := `CREATE TABLE IF NOT EXISTS cues (
        position INTEGER PRIMARY KEY,
        cue_id INTEGER NOT NULL,
        start_time TEXT NOT NULL,
        end_time TEXT NOT NULL,
        text TEXT NOT NULL,
        original_text TEXT NOT NULL,
        confirmed INTEGER NOT NULL DEFAULT 0
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cues table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load replaces the store contents with the given cues in order.
func (s *Store) Load(ctx context.Context, cues []subtitle.Cue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cues`); err != nil {
		return fmt.Errorf("clear cues: %w", err)
	}
	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO cues (position, cue_id, start_time, end_time, text, original_text, confirmed)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, cue := range cues {
		if _, err := stmt.ExecContext(ctx, i, cue.ID, cue.StartTime, cue.EndTime, cue.Text, cue.OriginalText, boolToInt(cue.Confirmed)); err != nil {
			return fmt.Errorf("insert cue %d: %w", cue.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

// List returns all cues in document order.
func (s *Store) List(ctx context.Context) ([]subtitle.Cue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cueColumns+` FROM cues ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list cues: %w", err)
	}
	defer rows.Close()

	var cues []subtitle.Cue
	for rows.Next() {
		cue, err := scanCue(rows)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	return cues, rows.Err()
}

// Count returns the number of loaded cues.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cues`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cues: %w", err)
	}
	return count, nil
}

// Get fetches a single cue by its id.
func (s *Store) Get(ctx context.Context, id int) (subtitle.Cue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cueColumns+` FROM cues WHERE cue_id = ?`, id)
	cue, err := scanCue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return subtitle.Cue{}, ErrCueNotFound
	}
	if err != nil {
		return subtitle.Cue{}, fmt.Errorf("get cue: %w", err)
	}
	return cue, nil
}

// Position returns the zero-based document position of a cue id.
func (s *Store) Position(ctx context.Context, id int) (int, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `SELECT position FROM cues WHERE cue_id = ?`, id).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCueNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("cue position: %w", err)
	}
	return position, nil
}

// Texts returns a snapshot of the current text of every cue in order.
func (s *Store) Texts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text FROM cues ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("snapshot texts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// SetText updates the text and confirmation flag of one cue.
func (s *Store) SetText(ctx context.Context, id int, text string, confirmed bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE cues SET text = ?, confirmed = ? WHERE cue_id = ?`,
		text,
		boolToInt(confirmed),
		id,
	)
	if err != nil {
		return fmt.Errorf("set text: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCueNotFound
	}
	return nil
}

// Revert restores one cue to its original text and clears confirmation.
func (s *Store) Revert(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE cues SET text = original_text, confirmed = 0 WHERE cue_id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revert cue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCueNotFound
	}
	return nil
}

// RevertAll restores every cue to its original text and clears confirmations.
func (s *Store) RevertAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE cues SET text = original_text, confirmed = 0`); err != nil {
		return fmt.Errorf("revert all cues: %w", err)
	}
	return nil
}

// CommitTexts replaces the text of every cue with the index-aligned entry
// from texts and clears confirmation flags, atomically. Either every cue is
// updated or none is; a length mismatch rejects the whole commit with
// ErrLengthMismatch.
func (s *Store) CommitTexts(ctx context.Context, texts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM cues`).Scan(&count); err != nil {
		return fmt.Errorf("count cues: %w", err)
	}
	if count != len(texts) {
		return fmt.Errorf("%w: %d texts for %d cues", ErrLengthMismatch, len(texts), count)
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE cues SET text = ?, confirmed = 0 WHERE position = ?`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for i, text := range texts {
		if _, err := stmt.ExecContext(ctx, text, i); err != nil {
			return fmt.Errorf("update cue at %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit texts: %w", err)
	}
	return nil
}

// Clear removes all cues.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cues`); err != nil {
		return fmt.Errorf("clear cues: %w", err)
	}
	return nil
}

const cueColumns = "cue_id, start_time, end_time, text, original_text, confirmed"

func scanCue(scanner interface{ Scan(dest ...any) error }) (subtitle.Cue, error) {
	var (
		cue       subtitle.Cue
		confirmed int
	)
	if err := scanner.Scan(&cue.ID, &cue.StartTime, &cue.EndTime, &cue.Text, &cue.OriginalText, &confirmed); err != nil {
		return subtitle.Cue{}, err
	}
	cue.Confirmed = confirmed != 0
	return cue, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
