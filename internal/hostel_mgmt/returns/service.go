package returns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"HMS-backend/internal/platform/db"
)

// ===== Error model (leaves/rooms と同型) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
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

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== collaborators =====

type ReturnStore interface {
	Insert(ctx context.Context, student string, leaveID *uint64, expected string, loc *Location) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*returnRow, error)
	Grant(ctx context.Context, id uint64, warden, decision string, remarks *string, now time.Time) (int64, error)
	List(ctx context.Context, q ListQuery, p Page) ([]returnRow, int64, error)
}

// ===== Service =====

type Service struct {
	store ReturnStore
	now   func() time.Time
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn), now: time.Now}
}

// テスト用
func newService(store ReturnStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Report: 帰寮報告。(student, leave) につき一件まで（UNIQUEで担保、1062 → Conflict）。
func (s *Service) Report(ctx context.Context, student string, in ReportReturnRequest) (ReturnResponse, error) {
	if _, err := time.ParseInLocation(DateLayout, in.ExpectedReturnDate, time.UTC); err != nil {
		return ReturnResponse{}, ErrInvalid("expected_return_date must be YYYY-MM-DD")
	}

	id, err := s.store.Insert(ctx, student, in.LeaveID, in.ExpectedReturnDate, in.Location)
	if err != nil {
		if db.IsDuplicateKey(err) || errors.Is(err, errDuplicateReport) {
			return ReturnResponse{}, ErrConflict("return already reported for this leave")
		}
		return ReturnResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (ReturnResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ReturnResponse{}, ErrNotFound("return report not found")
		}
		return ReturnResponse{}, err
	}
	return row.toDTO(), nil
}

// GrantAccess: pending の報告への一回きりの決裁。
// approved なら actual_return_date を打ち、紐付く leave も同一トランザクションで閉じる
// （閉じた時点で自動出欠の対象から外れる）。
func (s *Service) GrantAccess(ctx context.Context, id uint64, warden string, in GrantAccessRequest) (ReturnResponse, error) {
	if in.Decision != PermissionApproved && in.Decision != PermissionDenied {
		return ReturnResponse{}, ErrInvalid("decision must be approved or denied")
	}

	aff, err := s.store.Grant(ctx, id, warden, in.Decision, in.Remarks, s.now())
	if err != nil {
		return ReturnResponse{}, err
	}
	if aff == 0 {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return ReturnResponse{}, ErrNotFound("return report not found")
			}
			return ReturnResponse{}, err
		}
		return ReturnResponse{}, ErrConflict("return report already decided")
	}
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery, p Page) ([]ReturnResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ReturnResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
