package health

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const selectCols = `
	issue_id, student_id, hostel, description, severity,
	status, remarks, reported_at, resolved_at, resolved_by`

type issueRow struct {
	IssueID     uint64
	StudentID   string
	Hostel      string
	Description string
	Severity    string
	Status      string
	Remarks     *string
	ReportedAt  time.Time
	ResolvedAt  *time.Time
	ResolvedBy  *string
}

func (r issueRow) toDTO() IssueResponse {
	return IssueResponse{
		IssueID:     r.IssueID,
		StudentID:   r.StudentID,
		Hostel:      r.Hostel,
		Description: r.Description,
		Severity:    r.Severity,
		Status:      r.Status,
		Remarks:     r.Remarks,
		ReportedAt:  r.ReportedAt.UTC(),
		ResolvedAt:  r.ResolvedAt,
		ResolvedBy:  r.ResolvedBy,
	}
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanIssue(sc interface{ Scan(...any) error }) (*issueRow, error) {
	var r issueRow
	if err := sc.Scan(
		&r.IssueID, &r.StudentID, &r.Hostel, &r.Description, &r.Severity,
		&r.Status, &r.Remarks, &r.ReportedAt, &r.ResolvedAt, &r.ResolvedBy,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, student, hostel string, in ReportIssueRequest) (uint64, error) {
	const q = `
	INSERT INTO health_issues (student_id, hostel, description, severity, status, reported_at)
	VALUES (?, ?, ?, ?, 'open', UTC_TIMESTAMP(6))`

	res, err := s.db.ExecContext(ctx, q, student, hostel, in.Description, in.Severity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*issueRow, error) {
	q := "SELECT" + selectCols + " FROM health_issues WHERE issue_id = ?"
	return scanIssue(s.db.QueryRowContext(ctx, q, id))
}

// Resolve: open のみ遷移可。affected=0 なら NotFound か解決済み。
func (s *Store) Resolve(ctx context.Context, id uint64, resolvedBy string, remarks *string, now time.Time) (int64, error) {
	const q = `
	UPDATE health_issues
	SET status = 'resolved', remarks = COALESCE(?, remarks), resolved_at = ?, resolved_by = ?
	WHERE issue_id = ? AND status = 'open'`

	res, err := s.db.ExecContext(ctx, q, remarks, now.UTC(), resolvedBy, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context, q ListQuery, p Page) ([]issueRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if q.StudentID != nil && *q.StudentID != "" {
		wheres = append(wheres, "student_id = ?")
		args = append(args, *q.StudentID)
	}
	if q.Hostel != nil && *q.Hostel != "" {
		wheres = append(wheres, "hostel = ?")
		args = append(args, *q.Hostel)
	}
	if q.Status != nil && *q.Status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, *q.Status)
	}
	if q.Severity != nil && *q.Severity != "" {
		wheres = append(wheres, "severity = ?")
		args = append(args, *q.Severity)
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := fmt.Sprintf("SELECT%s FROM health_issues%s ORDER BY reported_at DESC, issue_id DESC LIMIT %d OFFSET %d",
		selectCols, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []issueRow
	for rows.Next() {
		r, err := scanIssue(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM health_issues"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
