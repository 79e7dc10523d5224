package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const selectCols = `
	attendance_id, user_id, DATE_FORMAT(attended_on, '%Y-%m-%d') AS attended_on,
	status, marked_by, remarks, clocked_at, latitude, longitude, accuracy, location_at`

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanAttendance(sc interface{ Scan(...any) error }) (*attendanceRow, error) {
	var r attendanceRow
	if err := sc.Scan(
		&r.AttendanceID, &r.UserID, &r.AttendedOn, &r.Status, &r.MarkedBy,
		&r.Remarks, &r.ClockedAt, &r.Latitude, &r.Longitude, &r.Accuracy, &r.LocationAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func locArgs(loc *Location) (lat, lon, acc, at any) {
	if loc == nil {
		return nil, nil, nil, nil
	}
	lat, lon = loc.Latitude, loc.Longitude
	if loc.Accuracy != nil {
		acc = *loc.Accuracy
	}
	if loc.Timestamp != nil {
		at = loc.Timestamp.UTC()
	}
	return
}

// InsertOnly: (user_id, attended_on) の UNIQUE に当てるだけの素朴な INSERT。
// 既存行があれば 1062 で返る。既存チェックはしない（競合時の取りこぼし防止）。
func (s *Store) InsertOnly(ctx context.Context, rec NewRecord) (uint64, error) {
	const q = `
	INSERT INTO attendances
	(user_id, attended_on, status, marked_by, remarks, clocked_at, latitude, longitude, accuracy, location_at)
	VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP(6), ?, ?, ?, ?)`

	lat, lon, acc, at := locArgs(rec.Location)
	res, err := s.db.ExecContext(ctx, q,
		rec.UserID, rec.Day, rec.Status, rec.MarkedBy, remarksOrNil(rec.Remarks), lat, lon, acc, at)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Upsert: (user_id, attended_on) の UNIQUE で INSERT または UPDATE。
// 返り値: 確定行、created=true（新規）/false（更新）
func (s *Store) Upsert(ctx context.Context, rec NewRecord) (*attendanceRow, bool, error) {
	// INSERT ... ON DUPLICATE KEY UPDATE
	// - 新規: RowsAffected = 1
	// - 既存更新: RowsAffected = 2
	const q = `
	INSERT INTO attendances
	(user_id, attended_on, status, marked_by, remarks, clocked_at, latitude, longitude, accuracy, location_at)
	VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP(6), ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	status      = VALUES(status),
	marked_by   = VALUES(marked_by),
	remarks     = VALUES(remarks),
	clocked_at  = VALUES(clocked_at),
	latitude    = VALUES(latitude),
	longitude   = VALUES(longitude),
	accuracy    = VALUES(accuracy),
	location_at = VALUES(location_at)`

	lat, lon, acc, at := locArgs(rec.Location)
	res, err := s.db.ExecContext(ctx, q,
		rec.UserID, rec.Day, rec.Status, rec.MarkedBy, remarksOrNil(rec.Remarks), lat, lon, acc, at)
	if err != nil {
		return nil, false, err
	}
	aff, _ := res.RowsAffected()
	created := (aff == 1)

	// 最終行を取得（UNIQUEキーで）
	row, err := s.GetByUserDay(ctx, rec.UserID, rec.Day)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, created, fmt.Errorf("attendance upserted but not found")
		}
		return nil, created, err
	}
	return row, created, nil
}

func (s *Store) GetByUserDay(ctx context.Context, userID, day string) (*attendanceRow, error) {
	q := "SELECT" + selectCols + " FROM attendances WHERE user_id = ? AND attended_on = ?"
	return scanAttendance(s.db.QueryRowContext(ctx, q, userID, day))
}

// Exists: 指定ユーザの指定日の記録があるか
func (s *Store) Exists(ctx context.Context, userID, day string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attendances WHERE user_id = ? AND attended_on = ? LIMIT 1`,
		userID, day,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List: 条件に応じて動的WHERE + ORDER + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]attendanceRow, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	buf.WriteString("SELECT" + selectCols + " FROM attendances")

	// WHERE
	if q.UserID != nil && *q.UserID != "" {
		wheres = append(wheres, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.Status != nil && *q.Status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, *q.Status)
	}
	if q.On != nil && *q.On != "" {
		wheres = append(wheres, "attended_on = ?")
		args = append(args, normalizeDateString(*q.On))
	} else {
		if q.From != nil && *q.From != "" {
			wheres = append(wheres, "attended_on >= ?")
			args = append(args, normalizeDateString(*q.From))
		}
		if q.To != nil && *q.To != "" {
			wheres = append(wheres, "attended_on <= ?")
			args = append(args, normalizeDateString(*q.To))
		}
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	// ORDER
	switch q.Sort {
	case SortClockedAtAsc:
		buf.WriteString(" ORDER BY clocked_at ASC, attendance_id ASC")
	case SortAttendedOnDesc:
		buf.WriteString(" ORDER BY attended_on DESC, clocked_at DESC, attendance_id DESC")
	case SortAttendedOnAsc:
		buf.WriteString(" ORDER BY attended_on ASC, clocked_at ASC, attendance_id ASC")
	default:
		buf.WriteString(" ORDER BY clocked_at DESC, attendance_id DESC")
	}

	// LIMIT/OFFSET
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, q.Offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []attendanceRow
	for rows.Next() {
		r, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// COUNT（ORDER BY より前までを再構築）
	var cntBuf bytes.Buffer
	cntBuf.WriteString("SELECT COUNT(*) FROM attendances")
	if len(wheres) > 0 {
		cntBuf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, cntBuf.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Stats: 期間内のユーザ別ステータス件数（present 降順 TOP N）
func (s *Store) Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT user_id,
	       SUM(status = 'present') AS present,
	       SUM(status = 'absent')  AS absent,
	       SUM(status = 'leave')   AS on_leave
	FROM attendances
	WHERE attended_on BETWEEN ? AND ?
	GROUP BY user_id
	ORDER BY present DESC, user_id ASC
	LIMIT ?`, from.Format(DateLayout), to.Format(DateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var row StatsRow
		if err := rows.Scan(&row.UserID, &row.Present, &row.Absent, &row.Leave); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ===== helpers =====

func remarksOrNil(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func normalizeDateString(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "today" {
		return time.Now().UTC().Format(DateLayout)
	}
	// assume YYYY-MM-DD
	return v
}
