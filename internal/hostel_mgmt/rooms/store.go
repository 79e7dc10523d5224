package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"HMS-backend/internal/platform/db"
)

// 満室時に Store が返す内部エラー。Service で APIError に変換する。
var errRoomFull = errors.New("room full")

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func (s *Store) Insert(ctx context.Context, in CreateRoomRequest) (uint64, error) {
	const q = `
	INSERT INTO rooms (hostel, floor, number, room_type, capacity, gender, assigned_warden, maintenance_status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), 'none', CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, in.Hostel, in.Floor, in.Number, in.RoomType, in.Capacity, in.Gender, in.AssignedWarden)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*roomRow, error) {
	const q = `
	SELECT room_id, hostel, floor, number, room_type, capacity, gender, assigned_warden, maintenance_status, created_at
	FROM rooms WHERE room_id = ?`
	var r roomRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.RoomID, &r.Hostel, &r.Floor, &r.Number, &r.RoomType, &r.Capacity,
		&r.Gender, &r.AssignedWarden, &r.MaintenanceStatus, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context, q SearchQuery, p Page) ([]roomRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if q.Hostel != nil && *q.Hostel != "" {
		wheres = append(wheres, "hostel = ?")
		args = append(args, *q.Hostel)
	}
	if q.Floor != nil {
		wheres = append(wheres, "floor = ?")
		args = append(args, *q.Floor)
	}
	if q.RoomType != nil && *q.RoomType != "" {
		wheres = append(wheres, "room_type = ?")
		args = append(args, *q.RoomType)
	}
	if q.Maintenance != nil && *q.Maintenance != "" {
		wheres = append(wheres, "maintenance_status = ?")
		args = append(args, *q.Maintenance)
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	sel := fmt.Sprintf(`
	SELECT room_id, hostel, floor, number, room_type, capacity, gender, assigned_warden, maintenance_status, created_at
	FROM rooms%s
	ORDER BY hostel ASC, floor ASC, number ASC
	LIMIT %d OFFSET %d`, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []roomRow
	for rows.Next() {
		var r roomRow
		if err := rows.Scan(&r.RoomID, &r.Hostel, &r.Floor, &r.Number, &r.RoomType, &r.Capacity,
			&r.Gender, &r.AssignedWarden, &r.MaintenanceStatus, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, id uint64, in UpdateRoomRequest) (int64, error) {
	var (
		sets []string
		args []any
	)
	if in.Capacity != nil {
		sets = append(sets, "capacity = ?")
		args = append(args, *in.Capacity)
	}
	if in.RoomType != nil {
		sets = append(sets, "room_type = ?")
		args = append(args, *in.RoomType)
	}
	if in.AssignedWarden != nil {
		sets = append(sets, "assigned_warden = NULLIF(?, '')")
		args = append(args, *in.AssignedWarden)
	}
	if in.MaintenanceStatus != nil {
		sets = append(sets, "maintenance_status = ?")
		args = append(args, *in.MaintenanceStatus)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)
	q := "UPDATE rooms SET " + strings.Join(sets, ", ") + " WHERE room_id = ?"
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ===== occupants =====

func (s *Store) Occupants(ctx context.Context, roomID uint64) ([]string, error) {
	const q = `
	SELECT user_id FROM room_occupants
	WHERE room_id = ?
	ORDER BY assigned_at ASC, user_id ASC`
	rows, err := s.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) OccupantCount(ctx context.Context, roomID uint64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_occupants WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}

// AssignOccupant: 1トランザクションで
//  1. 部屋行をロックして現員数を数える（満室なら errRoomFull）
//  2. 学生の旧配属を消す
//  3. 新配属を入れる
//
// user_id は room_occupants 全体で UNIQUE なので「学生は常に一部屋」が崩れない。
func (s *Store) AssignOccupant(ctx context.Context, roomID uint64, capacity int, student string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, `SELECT room_id FROM rooms WHERE room_id = ? FOR UPDATE`, roomID).Scan(&locked); err != nil {
			return err
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM room_occupants WHERE room_id = ? AND user_id <> ?`, roomID, student,
		).Scan(&n); err != nil {
			return err
		}
		if n >= capacity {
			return errRoomFull
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM room_occupants WHERE user_id = ?`, student); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO room_occupants (room_id, user_id, assigned_at) VALUES (?, ?, NOW(6))`, roomID, student)
		return err
	})
}

func (s *Store) RemoveOccupant(ctx context.Context, student string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_occupants WHERE user_id = ?`, student)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// 学生の現部屋（未配属なら found=false）
func (s *Store) RoomOfStudent(ctx context.Context, student string) (uint64, bool, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx, `SELECT room_id FROM room_occupants WHERE user_id = ?`, student).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// accounts から学生の性別を引く（居ないときは sql.ErrNoRows）
func (s *Store) StudentGender(ctx context.Context, student string) (string, error) {
	var g sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT gender FROM accounts WHERE id = ? AND role = 'student'`, student).Scan(&g)
	if err != nil {
		return "", err
	}
	return g.String, nil
}
