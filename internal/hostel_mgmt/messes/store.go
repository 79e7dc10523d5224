package messes

import (
	"context"
	"database/sql"
	"fmt"
)

const messCols = `mess_id, name, hostel, capacity, monthly_fee, menu`
const appCols = `application_id, student_id, mess_id, status, decided_by, created_at`

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

// ===== messes =====

func (s *Store) Insert(ctx context.Context, in CreateMessRequest) (uint64, error) {
	const q = `
	INSERT INTO messes (name, hostel, capacity, monthly_fee, menu)
	VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q, in.Name, in.Hostel, in.Capacity, in.MonthlyFee, in.Menu)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*messRow, error) {
	var r messRow
	err := s.db.QueryRowContext(ctx,
		"SELECT "+messCols+" FROM messes WHERE mess_id = ?", id,
	).Scan(&r.MessID, &r.Name, &r.Hostel, &r.Capacity, &r.MonthlyFee, &r.Menu)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Update(ctx context.Context, id uint64, in UpdateMessRequest) (int64, error) {
	const q = `
	UPDATE messes
	SET capacity = COALESCE(?, capacity),
	    monthly_fee = COALESCE(?, monthly_fee),
	    menu = COALESCE(?, menu)
	WHERE mess_id = ?`

	res, err := s.db.ExecContext(ctx, q, in.Capacity, in.MonthlyFee, in.Menu, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messes WHERE mess_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context, hostel *string, p Page) ([]messRow, int64, error) {
	where := ""
	var args []any
	if hostel != nil && *hostel != "" {
		where = " WHERE hostel = ?"
		args = append(args, *hostel)
	}

	sel := fmt.Sprintf("SELECT %s FROM messes%s ORDER BY name ASC LIMIT %d OFFSET %d",
		messCols, where, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []messRow
	for rows.Next() {
		var r messRow
		if err := rows.Scan(&r.MessID, &r.Name, &r.Hostel, &r.Capacity, &r.MonthlyFee, &r.Menu); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messes"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ===== applications =====

// (student_id, mess_id) の UNIQUE で二重申請を弾く。重複は 1062 で返る。
func (s *Store) InsertApplication(ctx context.Context, student string, messID uint64) (uint64, error) {
	const q = `
	INSERT INTO mess_applications (student_id, mess_id, status, created_at)
	VALUES (?, ?, 'pending', UTC_TIMESTAMP(6))`

	res, err := s.db.ExecContext(ctx, q, student, messID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetApplication(ctx context.Context, id uint64) (*applicationRow, error) {
	var r applicationRow
	err := s.db.QueryRowContext(ctx,
		"SELECT "+appCols+" FROM mess_applications WHERE application_id = ?", id,
	).Scan(&r.ApplicationID, &r.StudentID, &r.MessID, &r.Status, &r.DecidedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DecideApplication: pending のみ遷移可。affected=0 なら NotFound か既決。
func (s *Store) DecideApplication(ctx context.Context, id uint64, decider, decision string) (int64, error) {
	const q = `
	UPDATE mess_applications
	SET status = ?, decided_by = ?
	WHERE application_id = ? AND status = 'pending'`

	res, err := s.db.ExecContext(ctx, q, decision, decider, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListApplications(ctx context.Context, student *string, status *string, p Page) ([]applicationRow, int64, error) {
	where := ""
	var args []any
	if student != nil && *student != "" {
		where = " WHERE student_id = ?"
		args = append(args, *student)
	}
	if status != nil && *status != "" {
		if where == "" {
			where = " WHERE status = ?"
		} else {
			where += " AND status = ?"
		}
		args = append(args, *status)
	}

	sel := fmt.Sprintf("SELECT %s FROM mess_applications%s ORDER BY created_at DESC, application_id DESC LIMIT %d OFFSET %d",
		appCols, where, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []applicationRow
	for rows.Next() {
		var r applicationRow
		if err := rows.Scan(&r.ApplicationID, &r.StudentID, &r.MessID, &r.Status, &r.DecidedBy, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mess_applications"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
