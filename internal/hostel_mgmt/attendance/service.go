package attendance

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"HMS-backend/internal/platform/db"
	"HMS-backend/internal/platform/geofence"
)

// ===== Error model (leaves/returns と同型 + ドメイン固有コード) =====
type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeAlreadyMarked       Code = "ALREADY_MARKED"
	CodeLocationNotVerified Code = "LOCATION_NOT_VERIFIED"
	CodeInternal            Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrAlreadyMarked() *APIError {
	return &APIError{Code: CodeAlreadyMarked, Message: "attendance already marked for this day"}
}

func ErrLocationNotVerified() *APIError {
	return &APIError{Code: CodeLocationNotVerified, Message: "location could not be verified as on campus"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeLocationNotVerified:
			return 403
		case CodeNotFound:
			return 404
		case CodeConflict, CodeAlreadyMarked:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== collaborators =====

type AttendanceStore interface {
	InsertOnly(ctx context.Context, rec NewRecord) (uint64, error)
	Upsert(ctx context.Context, rec NewRecord) (*attendanceRow, bool, error)
	GetByUserDay(ctx context.Context, userID, day string) (*attendanceRow, error)
	Exists(ctx context.Context, userID, day string) (bool, error)
	List(ctx context.Context, q ListQuery) ([]attendanceRow, int64, error)
	Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error)
}

// ===== Service =====

type Service struct {
	store    AttendanceStore
	verifier geofence.Verifier
	now      func() time.Time
}

func NewService(conn *sql.DB, verifier geofence.Verifier) *Service {
	return &Service{store: NewStore(conn), verifier: verifier, now: time.Now}
}

// テスト用
func newService(store AttendanceStore, verifier geofence.Verifier, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, verifier: verifier, now: now}
}

// SelfMark: 学生の当日自己申告。INSERT 一発、既存行は UNIQUE に任せて
// 1062 → ALREADY_MARKED。既読チェック→INSERT の二段構えはしない。
//
// 位置情報付きの申告は geofence 検証を必須とする。検証器が未設定・照合不能の
// 場合も含めて、確認できなければ拒否（fail closed）。
func (s *Service) SelfMark(ctx context.Context, userID string, in SelfMarkRequest) (AttendanceResponse, error) {
	today := s.now().UTC().Format(DateLayout)
	day := today
	if in.Date != nil && *in.Date != "" {
		day = normalizeDateString(*in.Date)
		if _, err := time.ParseInLocation(DateLayout, day, time.UTC); err != nil {
			return AttendanceResponse{}, ErrInvalid("date must be YYYY-MM-DD or 'today'")
		}
	}
	if day != today {
		return AttendanceResponse{}, ErrInvalid("self-marking is only allowed for today")
	}

	if in.Location != nil {
		if s.verifier == nil {
			return AttendanceResponse{}, ErrLocationNotVerified()
		}
		if err := s.verifier.Verify(ctx, in.Location.Latitude, in.Location.Longitude); err != nil {
			if errors.Is(err, geofence.ErrNotVerified) {
				return AttendanceResponse{}, ErrLocationNotVerified()
			}
			return AttendanceResponse{}, err
		}
	}

	if _, err := s.store.InsertOnly(ctx, NewRecord{
		UserID:   userID,
		Day:      day,
		Status:   StatusPresent,
		MarkedBy: userID,
		Remarks:  in.Remarks,
		Location: in.Location,
	}); err != nil {
		if db.IsDuplicateKey(err) {
			return AttendanceResponse{}, ErrAlreadyMarked()
		}
		return AttendanceResponse{}, err
	}

	row, err := s.store.GetByUserDay(ctx, userID, day)
	if err != nil {
		return AttendanceResponse{}, err
	}
	return row.toDTO(), nil
}

// Upsert: 寮母・管理者による記録。既存行は上書きする。
func (s *Service) Upsert(ctx context.Context, markedBy string, in UpsertAttendanceRequest) (AttendanceResponse, bool, error) {
	if in.UserID == "" {
		return AttendanceResponse{}, false, ErrInvalid("user_id is required")
	}
	day := s.now().UTC().Format(DateLayout)
	if in.AttendedOn != nil && *in.AttendedOn != "" {
		day = normalizeDateString(*in.AttendedOn)
		if _, err := time.ParseInLocation(DateLayout, day, time.UTC); err != nil {
			return AttendanceResponse{}, false, ErrInvalid("attended_on must be YYYY-MM-DD or 'today'")
		}
	}

	row, created, err := s.store.Upsert(ctx, NewRecord{
		UserID:   in.UserID,
		Day:      day,
		Status:   in.Status,
		MarkedBy: markedBy,
		Remarks:  in.Remarks,
		Location: in.Location,
	})
	if err != nil {
		return AttendanceResponse{}, false, err
	}
	return row.toDTO(), created, nil
}

// HEAD /attendances?user_id=&on=
func (s *Service) Exists(ctx context.Context, userID, onStr string) (bool, error) {
	if userID == "" {
		return false, ErrInvalid("user_id is required")
	}
	day := normalizeDateString(onStr)
	if _, err := time.ParseInLocation(DateLayout, day, time.UTC); err != nil {
		return false, ErrInvalid("on must be YYYY-MM-DD or 'today'")
	}
	return s.store.Exists(ctx, userID, day)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]AttendanceResponse, int64, error) {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}

	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AttendanceResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

func (s *Service) Stats(ctx context.Context, req StatsRequest) ([]StatsRow, error) {
	from, err := time.ParseInLocation(DateLayout, req.From, time.UTC)
	if err != nil {
		return nil, ErrInvalid("from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(DateLayout, req.To, time.UTC)
	if err != nil {
		return nil, ErrInvalid("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, ErrInvalid("to must be >= from")
	}
	return s.store.Stats(ctx, from, to, req.Limit)
}

// ExportCSV: List と同じ条件で全件を CSV に書き出す（ページングは無視して上限まで）。
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, q ListQuery) error {
	q.Limit = MaxPageLimit
	q.Offset = 0
	if q.Sort == "" {
		q.Sort = SortAttendedOnAsc
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"attendance_id", "user_id", "attended_on", "status", "marked_by", "remarks", "clocked_at"}); err != nil {
		return err
	}
	for {
		rows, _, err := s.store.List(ctx, q)
		if err != nil {
			return err
		}
		for i := 0; i < len(rows); i++ {
			r := rows[i]
			remarks := ""
			if r.Remarks != nil {
				remarks = *r.Remarks
			}
			rec := []string{
				strconv.FormatUint(r.AttendanceID, 10),
				r.UserID,
				r.AttendedOn,
				r.Status,
				r.MarkedBy,
				remarks,
				r.ClockedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		if len(rows) < q.Limit {
			break
		}
		q.Offset += q.Limit
	}
	cw.Flush()
	return cw.Error()
}
