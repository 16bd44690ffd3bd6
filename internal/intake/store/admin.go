package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"lead-intake/internal/common/crm"
	"lead-intake/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Filter selects records for the admin views. Zero fields do not filter.
type Filter struct {
	From             time.Time
	To               time.Time
	Recommendation   models.Recommendation
	Band             models.ComparisonBand
	Source           models.AcquisitionSource
	ConsultationType string
	Sort             string
	Ascending        bool
	Limit            int
	Offset           int
}

// Page is one page of query results plus the total match count.
type Page struct {
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
	Records []models.DiagnosisRecord `json:"records"`
}

var sortColumns = map[string]string{
	"created_at":          "created_at",
	"consultation_number": "consultation_number",
	"reduction":           "(debt_info->'reduction'->>'percentage')::int",
	"debt":                "(debt_info->'reduction'->>'currentDebt')::numeric",
}

// SortKeys lists the accepted Filter.Sort values.
func SortKeys() []string {
	return []string{"created_at", "consultation_number", "reduction", "debt"}
}

func (f Filter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if f.Recommendation != "" {
		add("debt_info->>'recommendation' = $%d", string(f.Recommendation))
	}
	if f.Band != "" {
		add("debt_info->'reduction'->>'comparison' = $%d", string(f.Band))
	}
	if f.Source != "" {
		add("acquisition_source = $%d", string(f.Source))
	}
	if f.ConsultationType != "" {
		add("consultation_type = $%d", f.ConsultationType)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f Filter) orderBy() string {
	column, ok := sortColumns[f.Sort]
	if !ok {
		column = sortColumns["created_at"]
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id", column, dir)
}

func (f Filter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Query runs f against the mirror.
func (r *RemoteStore) Query(ctx context.Context, f Filter) (*Page, error) {
	where, args := f.where()
	limit, offset := f.page()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM diagnosis_records`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count diagnosis records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM diagnosis_records` + where + f.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query diagnosis records: %w", err)
	}
	defer rows.Close()

	page := &Page{Total: total, Limit: limit, Offset: offset, Records: []models.DiagnosisRecord{}}
	for rows.Next() {
		rec, err := scanRemote(rows)
		if err != nil {
			return nil, err
		}
		page.Records = append(page.Records, rec)
	}
	return page, rows.Err()
}

var csvHeader = []string{
	"상담번호", "접수일시", "이름", "연락처", "거주지", "상담유형", "유입경로", "상태",
	"추천", "총채무(만원)", "탕감률(%)", "구간", "36개월 변제금", "60개월 변제금", "중복", "중복건수",
}

// WriteCSV writes records as a UTF-8 CSV with a byte-order mark so
// spreadsheet tools detect the encoding.
func WriteCSV(w io.Writer, records []models.DiagnosisRecord) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(csvRow(&records[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(rec *models.DiagnosisRecord) []string {
	row := []string{
		rec.ConsultationNumber,
		rec.CreatedAt.In(crm.Seoul()).Format("2006-01-02 15:04:05"),
		rec.Contact.Name,
		rec.Contact.Phone,
		rec.Contact.Residence,
		rec.Contact.ConsultationType,
		string(rec.AcquisitionSource),
		string(rec.Status),
		"", "", "", "", "", "",
		strconv.FormatBool(rec.IsDuplicate),
		strconv.Itoa(rec.DuplicateCount),
	}
	if res := rec.Result; res != nil {
		row[8] = string(res.Recommendation)
		row[9] = formatAmount(res.Reduction.CurrentDebt)
		row[10] = strconv.Itoa(res.Reduction.Percentage)
		row[11] = string(res.Reduction.ComparisonBand)
		row[12] = formatAmount(res.MonthlyPayment.Period36)
		row[13] = formatAmount(res.MonthlyPayment.Period60)
	}
	return row
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
