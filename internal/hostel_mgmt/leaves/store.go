package leaves

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const selectCols = `
	leave_id, student_id,
	DATE_FORMAT(from_date, '%Y-%m-%d') AS from_date,
	DATE_FORMAT(to_date, '%Y-%m-%d') AS to_date,
	reason, status, approver, has_returned, returned_by, returned_date, auto_attendance, created_at`

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanLeave(sc interface{ Scan(...any) error }) (*leaveRow, error) {
	var (
		r       leaveRow
		hasRet  int
		autoAtt int
	)
	if err := sc.Scan(
		&r.LeaveID, &r.StudentID, &r.FromDate, &r.ToDate, &r.Reason, &r.Status,
		&r.Approver, &hasRet, &r.ReturnedBy, &r.ReturnedDate, &autoAtt, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.HasReturned = hasRet != 0
	r.AutoAttendance = autoAtt != 0
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, student, from, to, reason string, autoAttendance bool) (uint64, error) {
	const q = `
	INSERT INTO leave_requests (student_id, from_date, to_date, reason, status, has_returned, auto_attendance, created_at)
	VALUES (?, ?, ?, ?, 'pending', 0, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, student, from, to, reason, autoAttendance)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*leaveRow, error) {
	q := "SELECT" + selectCols + " FROM leave_requests WHERE leave_id = ?"
	return scanLeave(s.db.QueryRowContext(ctx, q, id))
}

// 一発勝負の決裁。pending のときだけ状態が変わる（RowsAffected=0 なら既決 or 無し）。
func (s *Store) Decide(ctx context.Context, id uint64, approver, decision string) (int64, error) {
	const q = `
	UPDATE leave_requests
	SET status = ?, approver = ?
	WHERE leave_id = ? AND status = 'pending'`
	res, err := s.db.ExecContext(ctx, q, decision, approver, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// has_returned は approved のときしか立たない（不変条件をUPDATE条件で守る）
func (s *Store) MarkReturned(ctx context.Context, id uint64, markedBy string, returnedAt time.Time) (int64, error) {
	const q = `
	UPDATE leave_requests
	SET has_returned = 1, returned_by = ?, returned_date = ?
	WHERE leave_id = ? AND status = 'approved' AND has_returned = 0`
	res, err := s.db.ExecContext(ctx, q, markedBy, returnedAt.UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// 自動出欠の対象: approved ∧ 未帰寮 ∧ auto_attendance ∧ from ≤ today ≤ to
func (s *Store) ListActive(ctx context.Context, today time.Time) ([]leaveRow, error) {
	q := "SELECT" + selectCols + `
	FROM leave_requests
	WHERE status = 'approved' AND has_returned = 0 AND auto_attendance = 1
	  AND from_date <= ? AND to_date >= ?
	ORDER BY leave_id ASC`
	day := today.UTC().Format(DateLayout)
	rows, err := s.db.QueryContext(ctx, q, day, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leaveRow
	for rows.Next() {
		r, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) List(ctx context.Context, q ListQuery, p Page) ([]leaveRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if q.StudentID != nil && *q.StudentID != "" {
		wheres = append(wheres, "student_id = ?")
		args = append(args, *q.StudentID)
	}
	if q.Status != nil && *q.Status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, *q.Status)
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := fmt.Sprintf("SELECT%s FROM leave_requests%s ORDER BY created_at DESC, leave_id DESC LIMIT %d OFFSET %d",
		selectCols, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []leaveRow
	for rows.Next() {
		r, err := scanLeave(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leave_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
