package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"lead-intake/internal/common/database"
	"lead-intake/internal/models"
)

// RemoteStore mirrors records into the diagnosis_records table used for
// reporting and admin queries.
type RemoteStore struct {
	db *database.PostgresClient
}

func NewRemoteStore(db *database.PostgresClient) *RemoteStore {
	return &RemoteStore{db: db}
}

// testAnswersColumn is the JSON stored in test_answers.
type testAnswersColumn struct {
	OriginalAnswers models.Answers       `json:"originalAnswers,omitempty"`
	CodedAnswers    *models.CodedAnswers `json:"codedAnswers,omitempty"`
}

const recordColumns = `id, created_at, updated_at, status, customer_name, phone, residence,
	consultation_type, consultation_number, acquisition_source, test_answers, debt_info,
	is_duplicate, duplicate_count`

const insertRecord = `
	INSERT INTO diagnosis_records (` + recordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO NOTHING`

// Insert writes rec. Re-inserting an existing id is a no-op so a retried
// attempt after a lost acknowledgement does not fail.
func (r *RemoteStore) Insert(ctx context.Context, rec *models.DiagnosisRecord) error {
	testAnswers, debtInfo, err := questionnaireColumns(rec)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, insertRecord,
		rec.ID,
		rec.CreatedAt,
		rec.UpdatedAt,
		string(rec.Status),
		rec.Contact.Name,
		rec.Contact.Phone,
		rec.Contact.Residence,
		rec.Contact.ConsultationType,
		nullString(rec.ConsultationNumber),
		string(rec.AcquisitionSource),
		testAnswers,
		debtInfo,
		rec.IsDuplicate,
		rec.DuplicateCount,
	)
	if err != nil {
		return fmt.Errorf("insert diagnosis record %s: %w", rec.ID, err)
	}
	return nil
}

const updateSet = `
	SET updated_at = $1, status = $2, customer_name = $3, phone = $4, residence = $5,
		consultation_type = $6, consultation_number = COALESCE($7, consultation_number),
		acquisition_source = $8, is_duplicate = $9, duplicate_count = $10`

const updateByID = `UPDATE diagnosis_records` + updateSet + ` WHERE id = $11`

const updateMostRecentTest = `UPDATE diagnosis_records` + updateSet + `
	WHERE id = (
		SELECT id FROM diagnosis_records
		WHERE acquisition_source = 'test'
		ORDER BY created_at DESC
		LIMIT 1
	)`

// Update applies the contact and state fields of rec. A missing id falls
// back to the most recent test row; with no such row rec is inserted.
func (r *RemoteStore) Update(ctx context.Context, rec *models.DiagnosisRecord) error {
	fields := []interface{}{
		rec.UpdatedAt,
		string(rec.Status),
		rec.Contact.Name,
		rec.Contact.Phone,
		rec.Contact.Residence,
		rec.Contact.ConsultationType,
		nullString(rec.ConsultationNumber),
		string(rec.AcquisitionSource),
		rec.IsDuplicate,
		rec.DuplicateCount,
	}

	attempts := []struct {
		query string
		args  []interface{}
	}{
		{updateByID, append(fields[:len(fields):len(fields)], rec.ID)},
		{updateMostRecentTest, fields},
	}
	for _, a := range attempts {
		res, err := r.db.Exec(ctx, a.query, a.args...)
		if err != nil {
			return fmt.Errorf("update diagnosis record %s: %w", rec.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
	}
	return r.Insert(ctx, rec)
}

// Delete removes the given ids and returns how many rows went away.
func (r *RemoteStore) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.Exec(ctx, `DELETE FROM diagnosis_records WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete diagnosis records: %w", err)
	}
	return res.RowsAffected()
}

func questionnaireColumns(rec *models.DiagnosisRecord) (interface{}, interface{}, error) {
	if !rec.FromQuestionnaire() {
		return nil, nil, nil
	}

	answers, err := json.Marshal(testAnswersColumn{
		OriginalAnswers: rec.OriginalAnswers,
		CodedAnswers:    rec.CodedAnswers,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal test_answers: %w", err)
	}

	var debtInfo interface{}
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal debt_info: %w", err)
		}
		debtInfo = string(raw)
	}
	return string(answers), debtInfo, nil
}

func scanRemote(rows *sql.Rows) (models.DiagnosisRecord, error) {
	var (
		rec         models.DiagnosisRecord
		status      string
		source      string
		number      sql.NullString
		testAnswers []byte
		debtInfo    []byte
	)
	err := rows.Scan(
		&rec.ID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&status,
		&rec.Contact.Name,
		&rec.Contact.Phone,
		&rec.Contact.Residence,
		&rec.Contact.ConsultationType,
		&number,
		&source,
		&testAnswers,
		&debtInfo,
		&rec.IsDuplicate,
		&rec.DuplicateCount,
	)
	if err != nil {
		return rec, err
	}

	rec.Status = models.RecordStatus(status)
	rec.AcquisitionSource = models.AcquisitionSource(source)
	rec.ConsultationNumber = number.String

	if len(testAnswers) > 0 {
		var col testAnswersColumn
		if err := json.Unmarshal(testAnswers, &col); err != nil {
			return rec, fmt.Errorf("decode test_answers of %s: %w", rec.ID, err)
		}
		rec.OriginalAnswers = col.OriginalAnswers
		rec.CodedAnswers = col.CodedAnswers
	}
	if len(debtInfo) > 0 {
		var result models.EligibilityResult
		if err := json.Unmarshal(debtInfo, &result); err != nil {
			return rec, fmt.Errorf("decode debt_info of %s: %w", rec.ID, err)
		}
		rec.Result = &result
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
