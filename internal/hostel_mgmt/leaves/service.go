package leaves

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"HMS-backend/internal/platform/notify"
)

// ===== Error model (hostels/rooms と同型 + ドメイン固有コード) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeNotApproved     Code = "NOT_APPROVED"
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

func ErrNotApproved() *APIError {
	return &APIError{Code: CodeNotApproved, Message: "leave request is not approved"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict, CodeNotApproved:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== collaborators =====

type LeaveStore interface {
	Insert(ctx context.Context, student, from, to, reason string, autoAttendance bool) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*leaveRow, error)
	Decide(ctx context.Context, id uint64, approver, decision string) (int64, error)
	MarkReturned(ctx context.Context, id uint64, markedBy string, returnedAt time.Time) (int64, error)
	ListActive(ctx context.Context, today time.Time) ([]leaveRow, error)
	List(ctx context.Context, q ListQuery, p Page) ([]leaveRow, int64, error)
}

// 状態変化の通知先。notify.Hub が実装する。
type Publisher interface {
	Publish(kind string, entityID uint64, studentID, newStatus string)
}

// ===== Service =====

type Service struct {
	store LeaveStore
	pub   Publisher
	now   func() time.Time
}

func NewService(conn *sql.DB, pub Publisher) *Service {
	return &Service{store: NewStore(conn), pub: pub, now: time.Now}
}

// テスト用
func newService(store LeaveStore, pub Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, pub: pub, now: now}
}

// Submit: pending で作成。他の申請との期間重複チェックはしない（仕様上の既知ギャップ）。
func (s *Service) Submit(ctx context.Context, student string, in SubmitLeaveRequest) (LeaveResponse, error) {
	from, err := time.ParseInLocation(DateLayout, in.FromDate, time.UTC)
	if err != nil {
		return LeaveResponse{}, ErrInvalid("from_date must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(DateLayout, in.ToDate, time.UTC)
	if err != nil {
		return LeaveResponse{}, ErrInvalid("to_date must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return LeaveResponse{}, ErrInvalid("to_date must be >= from_date")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return LeaveResponse{}, ErrInvalid("reason is required")
	}

	autoAtt := true
	if in.AutoAttendance != nil {
		autoAtt = *in.AutoAttendance
	}

	id, err := s.store.Insert(ctx, student, in.FromDate, in.ToDate, in.Reason, autoAtt)
	if err != nil {
		return LeaveResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (LeaveResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return LeaveResponse{}, ErrNotFound("leave request not found")
		}
		return LeaveResponse{}, err
	}
	return row.toDTO(), nil
}

// Decide: pending → approved/rejected の一回きりの遷移。
// 既決への再決裁は Conflict（不正な状態遷移）として弾く。
func (s *Service) Decide(ctx context.Context, id uint64, approver, decision string) (LeaveResponse, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return LeaveResponse{}, ErrInvalid("decision must be approved or rejected")
	}

	aff, err := s.store.Decide(ctx, id, approver, decision)
	if err != nil {
		return LeaveResponse{}, err
	}
	if aff == 0 {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return LeaveResponse{}, ErrNotFound("leave request not found")
			}
			return LeaveResponse{}, err
		}
		return LeaveResponse{}, ErrConflict("leave request already decided")
	}

	if s.pub != nil {
		row, err := s.store.GetByID(ctx, id)
		if err == nil {
			s.pub.Publish(notify.KindLeaveUpdated, id, row.StudentID, decision)
		}
	}
	return s.Get(ctx, id)
}

// MarkReturnedDirectly: StudentReturn を経ない寮母用のショートカット。
// approved 以外は NOT_APPROVED。marker は記録を残した決裁者（監査用）。
func (s *Service) MarkReturnedDirectly(ctx context.Context, id uint64, marker string, returnDate *string) (LeaveResponse, error) {
	returnedAt := s.now().UTC()
	if returnDate != nil && *returnDate != "" {
		t, err := time.ParseInLocation(DateLayout, *returnDate, time.UTC)
		if err != nil {
			return LeaveResponse{}, ErrInvalid("return_date must be YYYY-MM-DD")
		}
		returnedAt = t
	}

	aff, err := s.store.MarkReturned(ctx, id, marker, returnedAt)
	if err != nil {
		return LeaveResponse{}, err
	}
	if aff == 0 {
		row, err := s.store.GetByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return LeaveResponse{}, ErrNotFound("leave request not found")
			}
			return LeaveResponse{}, err
		}
		if row.HasReturned {
			return LeaveResponse{}, ErrConflict("student already marked as returned")
		}
		return LeaveResponse{}, ErrNotApproved()
	}
	return s.Get(ctx, id)
}

// ListActive: 自動出欠ジョブの入力。状態としては保存せず都度導出する。
func (s *Service) ListActive(ctx context.Context, today time.Time) ([]LeaveResponse, error) {
	rows, err := s.store.ListActive(ctx, today)
	if err != nil {
		return nil, err
	}
	out := make([]LeaveResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, q ListQuery, p Page) ([]LeaveResponse, int64, error) {
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
	out := make([]LeaveResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
