package hostels

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ===== hostels =====

func (s *Store) Insert(ctx context.Context, in CreateHostelRequest) (uint64, error) {
	const q = `
	INSERT INTO hostels (name, gender, warden, total_rooms, total_capacity, created_at)
	VALUES (?, ?, NULLIF(?, ''), 0, 0, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, in.Name, in.Gender, in.Warden)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*hostelRow, error) {
	const q = `
	SELECT hostel_id, name, gender, warden, total_rooms, total_capacity, created_at
	FROM hostels WHERE hostel_id = ?`
	var r hostelRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.HostelID, &r.Name, &r.Gender, &r.Warden, &r.TotalRooms, &r.TotalCapacity, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetByName(ctx context.Context, name string) (*hostelRow, error) {
	const q = `
	SELECT hostel_id, name, gender, warden, total_rooms, total_capacity, created_at
	FROM hostels WHERE name = ?`
	var r hostelRow
	if err := s.db.QueryRowContext(ctx, q, name).Scan(
		&r.HostelID, &r.Name, &r.Gender, &r.Warden, &r.TotalRooms, &r.TotalCapacity, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context, p Page) ([]hostelRow, int64, error) {
	order := "ASC"
	if p.Order == "desc" {
		order = "DESC"
	}
	q := fmt.Sprintf(`
	SELECT hostel_id, name, gender, warden, total_rooms, total_capacity, created_at
	FROM hostels
	ORDER BY name %s
	LIMIT %d OFFSET %d`, order, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []hostelRow
	for rows.Next() {
		var r hostelRow
		if err := rows.Scan(&r.HostelID, &r.Name, &r.Gender, &r.Warden, &r.TotalRooms, &r.TotalCapacity, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hostels`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, id uint64, in UpdateHostelRequest) (int64, error) {
	var (
		sets []string
		args []any
	)
	if in.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, *in.Gender)
	}
	if in.Warden != nil {
		sets = append(sets, "warden = NULLIF(?, '')")
		args = append(args, *in.Warden)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)
	q := "UPDATE hostels SET " + strings.Join(sets, ", ") + " WHERE hostel_id = ?"
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hostels WHERE hostel_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) RoomCount(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE hostel = ?`, name).Scan(&n)
	return n, err
}

// ===== capacity ledger（集計はアトミックな加算で保つ） =====

// 部屋追加。該当寮が無ければ何もしない（既知の整合性ギャップ、ログのみ）。
func (s *Store) ApplyRoomCreated(ctx context.Context, hostel string, capacity int) error {
	const q = `
	UPDATE hostels
	SET total_rooms = total_rooms + 1, total_capacity = total_capacity + ?
	WHERE name = ?`
	res, err := s.db.ExecContext(ctx, q, capacity, hostel)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		log.Printf("[WARN] hostels: room created for unknown hostel %q, aggregates not updated", hostel)
	}
	return nil
}

func (s *Store) ApplyRoomCapacityChanged(ctx context.Context, hostel string, delta int) error {
	if delta == 0 {
		return nil
	}
	const q = `UPDATE hostels SET total_capacity = total_capacity + ? WHERE name = ?`
	res, err := s.db.ExecContext(ctx, q, delta, hostel)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		log.Printf("[WARN] hostels: capacity change for unknown hostel %q, aggregates not updated", hostel)
	}
	return nil
}

func (s *Store) ApplyRoomDeleted(ctx context.Context, hostel string, capacity int) error {
	const q = `
	UPDATE hostels
	SET total_rooms = total_rooms - 1, total_capacity = total_capacity - ?
	WHERE name = ?`
	res, err := s.db.ExecContext(ctx, q, capacity, hostel)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		log.Printf("[WARN] hostels: room deleted for unknown hostel %q, aggregates not updated", hostel)
	}
	return nil
}

// RecomputeAggregates: rooms テーブルを正として集計を再計算する修復パス。
// 集計更新の抜け（非トランザクションゆえのドリフト）はこれで直す。
func (s *Store) RecomputeAggregates(ctx context.Context) (int64, error) {
	const q = `
	UPDATE hostels h
	LEFT JOIN (
		SELECT hostel, COUNT(*) AS cnt, COALESCE(SUM(capacity), 0) AS cap
		FROM rooms
		GROUP BY hostel
	) r ON r.hostel = h.name
	SET h.total_rooms = COALESCE(r.cnt, 0), h.total_capacity = COALESCE(r.cap, 0)`
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ===== hostel requests =====

func (s *Store) InsertRequest(ctx context.Context, student, hostel string) (uint64, error) {
	const q = `
	INSERT INTO hostel_requests (student_id, hostel, status, created_at)
	VALUES (?, ?, 'pending', CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, student, hostel)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// pending のときだけ決裁できる（条件付きUPDATEで一発勝負にする）
func (s *Store) DecideRequest(ctx context.Context, id uint64, decider, decision string) (int64, error) {
	const q = `
	UPDATE hostel_requests
	SET status = ?, decided_by = ?, decided_at = NOW(6)
	WHERE request_id = ? AND status = 'pending'`
	res, err := s.db.ExecContext(ctx, q, decision, decider, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetRequest(ctx context.Context, id uint64) (*requestRow, error) {
	const q = `
	SELECT request_id, student_id, hostel, status, decided_by, decided_at, created_at
	FROM hostel_requests WHERE request_id = ?`
	var r requestRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.RequestID, &r.StudentID, &r.Hostel, &r.Status, &r.DecidedBy, &r.DecidedAt, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, student, status string, p Page) ([]requestRow, int64, error) {
	var (
		wheres []string
		args   []any
	)
	if student != "" {
		wheres = append(wheres, "student_id = ?")
		args = append(args, student)
	}
	if status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, status)
	}

	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	q := fmt.Sprintf(`
	SELECT request_id, student_id, hostel, status, decided_by, decided_at, created_at
	FROM hostel_requests%s
	ORDER BY created_at DESC, request_id DESC
	LIMIT %d OFFSET %d`, where, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []requestRow
	for rows.Next() {
		var r requestRow
		if err := rows.Scan(&r.RequestID, &r.StudentID, &r.Hostel, &r.Status, &r.DecidedBy, &r.DecidedAt, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hostel_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
