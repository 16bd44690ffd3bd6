package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lead-intake/internal/common/database"
	"lead-intake/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions of the local cache:
// 1 - records without schema_version; payloads use the legacy flat shape
// 2 - schema_version column; payloads are canonical DiagnosisRecords
const currentSchemaVersion = 2

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("record not found")

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// LocalStore is the on-disk cache that serves immediate reads.
type LocalStore struct {
	db *sql.DB
}

// OpenLocal opens the cache at path and brings its schema up to date.
func OpenLocal(path string) (*LocalStore, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 tags every existing row as version 1 so reads upgrade it.
func migrateToV2(db *sql.DB) error {
	ok, err := hasColumn(db, "records", "schema_version")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE records ADD COLUMN schema_version INTEGER NOT NULL DEFAULT 1`); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Append inserts rec. The id must be new.
func (s *LocalStore) Append(ctx context.Context, rec *models.DiagnosisRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
			(id, created_at, updated_at, acquisition_source, phone, consultation_number, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		string(rec.AcquisitionSource),
		rec.Contact.Phone,
		rec.ConsultationNumber,
		models.RecordSchemaVersion,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Put replaces the stored record with rec, rewriting legacy rows in the
// canonical shape.
func (s *LocalStore) Put(ctx context.Context, rec *models.DiagnosisRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET updated_at = ?, acquisition_source = ?, phone = ?, consultation_number = ?,
			schema_version = ?, payload = ?
		WHERE id = ?`,
		formatTime(rec.UpdatedAt),
		string(rec.AcquisitionSource),
		rec.Contact.Phone,
		rec.ConsultationNumber,
		models.RecordSchemaVersion,
		string(payload),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, schema_version, payload FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

// MostRecentTest returns the newest record still in the test state.
func (s *LocalStore) MostRecentTest(ctx context.Context) (*models.DiagnosisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, schema_version, payload FROM records
		WHERE acquisition_source = ?
		ORDER BY created_at DESC
		LIMIT 1`, string(models.SourceTest))
	return scanRecord(row)
}

// HighestNumber returns the largest n among consultation numbers of the form
// prefix+n or prefix+n+LocalNumberSuffix, or 0 when there are none.
// Temporary labels are ignored.
func (s *LocalStore) HighestNumber(ctx context.Context, prefix string) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT consultation_number FROM records WHERE consultation_number LIKE ? || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("scan consultation numbers: %w", err)
	}
	defer rows.Close()

	var highest int64
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return 0, err
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(label, prefix), models.LocalNumberSuffix)
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, rows.Err()
}

// Delete removes the given ids and returns how many rows went away.
func (s *LocalStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(row *sql.Row) (*models.DiagnosisRecord, error) {
	var (
		id        string
		createdAt string
		version   int
		payload   string
	)
	if err := row.Scan(&id, &createdAt, &version, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec, err := decodePayload(version, []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			rec.CreatedAt = t
		}
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
