package complaints

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const selectCols = `
	complaint_id, student_id, hostel, category, description,
	status, assigned_to, resolution, created_at, resolved_at`

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanComplaint(sc interface{ Scan(...any) error }) (*complaintRow, error) {
	var r complaintRow
	if err := sc.Scan(
		&r.ComplaintID, &r.StudentID, &r.Hostel, &r.Category, &r.Description,
		&r.Status, &r.AssignedTo, &r.Resolution, &r.CreatedAt, &r.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, student string, in FileComplaintRequest) (uint64, error) {
	const q = `
	INSERT INTO complaints (student_id, hostel, category, description, status, created_at)
	VALUES (?, ?, ?, ?, 'open', UTC_TIMESTAMP(6))`

	res, err := s.db.ExecContext(ctx, q, student, in.Hostel, in.Category, in.Description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*complaintRow, error) {
	q := "SELECT" + selectCols + " FROM complaints WHERE complaint_id = ?"
	return scanComplaint(s.db.QueryRowContext(ctx, q, id))
}

// Update: 終端状態（resolved/rejected）からの変更は弾く。affected=0 のとき
// 呼び出し側が NotFound か既終端かを切り分ける。
func (s *Store) Update(ctx context.Context, id uint64, in UpdateComplaintRequest, now time.Time) (int64, error) {
	const q = `
	UPDATE complaints
	SET status = ?, assigned_to = COALESCE(?, assigned_to), resolution = COALESCE(?, resolution),
	    resolved_at = CASE WHEN ? IN ('resolved','rejected') THEN ? ELSE resolved_at END
	WHERE complaint_id = ? AND status IN ('open','in_progress')`

	res, err := s.db.ExecContext(ctx, q, in.Status, in.AssignedTo, in.Resolution, in.Status, now.UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context, q ListQuery, p Page) ([]complaintRow, int64, error) {
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

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := fmt.Sprintf("SELECT%s FROM complaints%s ORDER BY created_at DESC, complaint_id DESC LIMIT %d OFFSET %d",
		selectCols, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []complaintRow
	for rows.Next() {
		r, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM complaints"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
