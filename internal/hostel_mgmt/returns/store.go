package returns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"HMS-backend/internal/platform/db"
)

// leave 未紐付けの報告が既にあるときに Store が返す内部エラー。
// (UNIQUE は leave_id が NULL の行に効かないのでストア側で弾く)
var errDuplicateReport = errors.New("return already reported")

const selectCols = `
	return_id, student_id, leave_id, reported_date,
	DATE_FORMAT(expected_return_date, '%Y-%m-%d') AS expected_return_date,
	actual_return_date, permission, granted_by, granted_at, remarks,
	latitude, longitude, accuracy, location_at`

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanReturn(sc interface{ Scan(...any) error }) (*returnRow, error) {
	var r returnRow
	if err := sc.Scan(
		&r.ReturnID, &r.StudentID, &r.LeaveID, &r.ReportedDate, &r.ExpectedReturnDate,
		&r.ActualReturnDate, &r.Permission, &r.PermissionGrantedBy, &r.PermissionGrantedAt,
		&r.Remarks, &r.Latitude, &r.Longitude, &r.Accuracy, &r.LocationAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// (student_id, leave_id) の UNIQUE で二重報告を弾く。重複は 1062 で返る。
// leave_id が NULL の報告は UNIQUE の対象外（MySQL は NULL 同士を別値扱い）
// なので、トランザクション内の事前チェックで errDuplicateReport を返す。
func (s *Store) Insert(ctx context.Context, student string, leaveID *uint64, expected string, loc *Location) (uint64, error) {
	const q = `
	INSERT INTO student_returns
	(student_id, leave_id, reported_date, expected_return_date, permission, latitude, longitude, accuracy, location_at)
	VALUES (?, ?, NOW(6), ?, 'pending', ?, ?, ?, ?)`

	var lat, lon, acc any
	var locAt any
	if loc != nil {
		lat, lon = loc.Latitude, loc.Longitude
		if loc.Accuracy != nil {
			acc = *loc.Accuracy
		}
		if loc.Timestamp != nil {
			locAt = loc.Timestamp.UTC()
		}
	}

	if leaveID == nil {
		var id uint64
		err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
			var existing uint64
			err := tx.QueryRowContext(ctx,
				`SELECT return_id FROM student_returns
				 WHERE student_id = ? AND leave_id IS NULL LIMIT 1 FOR UPDATE`, student,
			).Scan(&existing)
			if err == nil {
				return errDuplicateReport
			}
			if err != sql.ErrNoRows {
				return err
			}
			res, err := tx.ExecContext(ctx, q, student, nil, expected, lat, lon, acc, locAt)
			if err != nil {
				return err
			}
			last, err := res.LastInsertId()
			if err != nil {
				return err
			}
			id = uint64(last)
			return nil
		})
		return id, err
	}

	res, err := s.db.ExecContext(ctx, q, student, leaveID, expected, lat, lon, acc, locAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*returnRow, error) {
	q := "SELECT" + selectCols + " FROM student_returns WHERE return_id = ?"
	return scanReturn(s.db.QueryRowContext(ctx, q, id))
}

// Grant: 1トランザクションで
//  1. pending の報告だけを approved/denied に更新（approved なら actual_return_date も）
//  2. approved かつ leave が紐付くなら leave_requests.has_returned を立てる
//
// 2 は status='approved' 条件付き。条件を満たさない leave はログだけ残して続行する。
func (s *Store) Grant(ctx context.Context, id uint64, warden, decision string, remarks *string, now time.Time) (int64, error) {
	var affected int64
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var leaveID *uint64
		if err := tx.QueryRowContext(ctx,
			`SELECT leave_id FROM student_returns WHERE return_id = ? FOR UPDATE`, id,
		).Scan(&leaveID); err != nil {
			if err == sql.ErrNoRows {
				affected = 0
				return nil
			}
			return err
		}

		const upd = `
		UPDATE student_returns
		SET permission = ?, granted_by = ?, granted_at = ?, remarks = COALESCE(?, remarks),
		    actual_return_date = CASE WHEN ? = 'approved' THEN ? ELSE actual_return_date END
		WHERE return_id = ? AND permission = 'pending'`
		res, err := tx.ExecContext(ctx, upd, decision, warden, now.UTC(), remarks, decision, now.UTC(), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		if decision == PermissionApproved && leaveID != nil {
			const closeLeave = `
			UPDATE leave_requests
			SET has_returned = 1, returned_by = ?, returned_date = ?
			WHERE leave_id = ? AND status = 'approved' AND has_returned = 0`
			res, err := tx.ExecContext(ctx, closeLeave, warden, now.UTC(), *leaveID)
			if err != nil {
				return err
			}
			if aff, _ := res.RowsAffected(); aff == 0 {
				log.Printf("[WARN] returns: leave %d not closed on grant (not approved or already returned)", *leaveID)
			}
		}
		return nil
	})
	return affected, err
}

func (s *Store) List(ctx context.Context, q ListQuery, p Page) ([]returnRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if q.StudentID != nil && *q.StudentID != "" {
		wheres = append(wheres, "student_id = ?")
		args = append(args, *q.StudentID)
	}
	if q.Permission != nil && *q.Permission != "" {
		wheres = append(wheres, "permission = ?")
		args = append(args, *q.Permission)
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := fmt.Sprintf("SELECT%s FROM student_returns%s ORDER BY reported_date DESC, return_id DESC LIMIT %d OFFSET %d",
		selectCols, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []returnRow
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM student_returns"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
