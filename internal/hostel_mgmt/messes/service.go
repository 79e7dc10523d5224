package messes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"HMS-backend/internal/platform/db"
)

// ===== Error model (hostels と同型) =====
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

// ===== Service =====

type Service struct {
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn)}
}

func (s *Service) Create(ctx context.Context, in CreateMessRequest) (MessResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return MessResponse{}, ErrInvalid("name is required")
	}
	id, err := s.store.Insert(ctx, in)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return MessResponse{}, ErrConflict("mess name already exists")
		}
		return MessResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (MessResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return MessResponse{}, ErrNotFound("mess not found")
		}
		return MessResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Update(ctx context.Context, id uint64, in UpdateMessRequest) (MessResponse, error) {
	if in.Capacity != nil && *in.Capacity <= 0 {
		return MessResponse{}, ErrInvalid("capacity must be positive")
	}
	if _, err := s.store.Update(ctx, id, in); err != nil {
		return MessResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	aff, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound("mess not found")
	}
	return nil
}

func (s *Service) List(ctx context.Context, hostel *string, p Page) ([]MessResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.List(ctx, hostel, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]MessResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

// Apply: (student, mess) につき一件。UNIQUE で担保、1062 → Conflict。
func (s *Service) Apply(ctx context.Context, student string, in ApplyRequest) (ApplicationResponse, error) {
	if _, err := s.store.GetByID(ctx, in.MessID); err != nil {
		if err == sql.ErrNoRows {
			return ApplicationResponse{}, ErrNotFound("mess not found")
		}
		return ApplicationResponse{}, err
	}

	id, err := s.store.InsertApplication(ctx, student, in.MessID)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return ApplicationResponse{}, ErrConflict("application already exists for this mess")
		}
		return ApplicationResponse{}, err
	}
	return s.GetApplication(ctx, id)
}

func (s *Service) GetApplication(ctx context.Context, id uint64) (ApplicationResponse, error) {
	row, err := s.store.GetApplication(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ApplicationResponse{}, ErrNotFound("application not found")
		}
		return ApplicationResponse{}, err
	}
	return row.toDTO(), nil
}

// DecideApplication: pending → approved/rejected の一回きりの遷移。
func (s *Service) DecideApplication(ctx context.Context, id uint64, decider, decision string) (ApplicationResponse, error) {
	if decision != ApplicationApproved && decision != ApplicationRejected {
		return ApplicationResponse{}, ErrInvalid("decision must be approved or rejected")
	}

	aff, err := s.store.DecideApplication(ctx, id, decider, decision)
	if err != nil {
		return ApplicationResponse{}, err
	}
	if aff == 0 {
		if _, err := s.store.GetApplication(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return ApplicationResponse{}, ErrNotFound("application not found")
			}
			return ApplicationResponse{}, err
		}
		return ApplicationResponse{}, ErrConflict("application already decided")
	}
	return s.GetApplication(ctx, id)
}

func (s *Service) ListApplications(ctx context.Context, student, status *string, p Page) ([]ApplicationResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.ListApplications(ctx, student, status, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ApplicationResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
