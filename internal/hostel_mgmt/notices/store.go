package notices

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const selectCols = `notice_id, title, body, audience, posted_by, posted_at, active_to`

type noticeRow struct {
	NoticeID uint64
	Title    string
	Body     string
	Audience string
	PostedBy string
	PostedAt time.Time
	ActiveTo *time.Time
}

func (r noticeRow) toDTO() NoticeResponse {
	return NoticeResponse{
		NoticeID: r.NoticeID,
		Title:    r.Title,
		Body:     r.Body,
		Audience: r.Audience,
		PostedBy: r.PostedBy,
		PostedAt: r.PostedAt.UTC(),
		ActiveTo: r.ActiveTo,
	}
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

func scanNotice(sc interface{ Scan(...any) error }) (*noticeRow, error) {
	var r noticeRow
	if err := sc.Scan(&r.NoticeID, &r.Title, &r.Body, &r.Audience, &r.PostedBy, &r.PostedAt, &r.ActiveTo); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Insert(ctx context.Context, postedBy string, in PostNoticeRequest) (uint64, error) {
	const q = `
	INSERT INTO notices (title, body, audience, posted_by, posted_at, active_to)
	VALUES (?, ?, ?, ?, UTC_TIMESTAMP(6), ?)`

	var activeTo any
	if in.ActiveTo != nil {
		activeTo = in.ActiveTo.UTC()
	}
	res, err := s.db.ExecContext(ctx, q, in.Title, in.Body, in.Audience, postedBy, activeTo)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*noticeRow, error) {
	q := "SELECT " + selectCols + " FROM notices WHERE notice_id = ?"
	return scanNotice(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) Update(ctx context.Context, id uint64, in UpdateNoticeRequest) (int64, error) {
	const q = `
	UPDATE notices
	SET title = COALESCE(?, title), body = COALESCE(?, body), active_to = COALESCE(?, active_to)
	WHERE notice_id = ?`

	var activeTo any
	if in.ActiveTo != nil {
		activeTo = in.ActiveTo.UTC()
	}
	res, err := s.db.ExecContext(ctx, q, in.Title, in.Body, activeTo, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notices WHERE notice_id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActive: 有効期限内で、audience が 'all' か指定寮のもの。
func (s *Store) ListActive(ctx context.Context, hostel string, now time.Time, p Page) ([]noticeRow, int64, error) {
	where := ` WHERE (active_to IS NULL OR active_to >= ?) AND (audience = 'all' OR audience = ?)`
	args := []any{now.UTC(), hostel}

	sel := fmt.Sprintf("SELECT %s FROM notices%s ORDER BY posted_at DESC, notice_id DESC LIMIT %d OFFSET %d",
		selectCols, where, p.Limit, p.Offset)
	rows, err := s.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []noticeRow
	for rows.Next() {
		r, err := scanNotice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notices"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
