package complaints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"HMS-backend/internal/platform/notify"
)

// ===== Error model (leaves/returns と同型) =====
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

type ComplaintStore interface {
	Insert(ctx context.Context, student string, in FileComplaintRequest) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*complaintRow, error)
	Update(ctx context.Context, id uint64, in UpdateComplaintRequest, now time.Time) (int64, error)
	List(ctx context.Context, q ListQuery, p Page) ([]complaintRow, int64, error)
}

type Publisher interface {
	Publish(kind string, entityID uint64, studentID, newStatus string)
}

// ===== Service =====

type Service struct {
	store ComplaintStore
	pub   Publisher
	now   func() time.Time
}

func NewService(conn *sql.DB, pub Publisher) *Service {
	return &Service{store: NewStore(conn), pub: pub, now: time.Now}
}

// テスト用
func newService(store ComplaintStore, pub Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, pub: pub, now: now}
}

func (s *Service) File(ctx context.Context, student string, in FileComplaintRequest) (ComplaintResponse, error) {
	if strings.TrimSpace(in.Description) == "" {
		return ComplaintResponse{}, ErrInvalid("description is required")
	}
	id, err := s.store.Insert(ctx, student, in)
	if err != nil {
		return ComplaintResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (ComplaintResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ComplaintResponse{}, ErrNotFound("complaint not found")
		}
		return ComplaintResponse{}, err
	}
	return row.toDTO(), nil
}

// UpdateStatus: 状態変化を保存して complaint-updated を配信する。
// 終端（resolved/rejected）後の再更新は Conflict。
func (s *Service) UpdateStatus(ctx context.Context, id uint64, in UpdateComplaintRequest) (ComplaintResponse, error) {
	aff, err := s.store.Update(ctx, id, in, s.now())
	if err != nil {
		return ComplaintResponse{}, err
	}
	if aff == 0 {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return ComplaintResponse{}, ErrNotFound("complaint not found")
			}
			return ComplaintResponse{}, err
		}
		return ComplaintResponse{}, ErrConflict("complaint already resolved or rejected")
	}

	if s.pub != nil {
		row, err := s.store.GetByID(ctx, id)
		if err == nil {
			s.pub.Publish(notify.KindComplaintUpdated, id, row.StudentID, in.Status)
		}
	}
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery, p Page) ([]ComplaintResponse, int64, error) {
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
	out := make([]ComplaintResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
