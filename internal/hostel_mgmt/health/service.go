package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ===== Error model =====
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
	now   func() time.Time
}

func NewService(conn *sql.DB) *Service {
	return &Service{store: NewStore(conn), now: time.Now}
}

func (s *Service) Report(ctx context.Context, student string, in ReportIssueRequest) (IssueResponse, error) {
	if strings.TrimSpace(in.Description) == "" {
		return IssueResponse{}, ErrInvalid("description is required")
	}
	id, err := s.store.Insert(ctx, student, in.Hostel, in)
	if err != nil {
		return IssueResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (IssueResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return IssueResponse{}, ErrNotFound("health issue not found")
		}
		return IssueResponse{}, err
	}
	return row.toDTO(), nil
}

// Resolve: open → resolved の一回きりの遷移。
func (s *Service) Resolve(ctx context.Context, id uint64, resolvedBy string, in ResolveIssueRequest) (IssueResponse, error) {
	aff, err := s.store.Resolve(ctx, id, resolvedBy, in.Remarks, s.now())
	if err != nil {
		return IssueResponse{}, err
	}
	if aff == 0 {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return IssueResponse{}, ErrNotFound("health issue not found")
			}
			return IssueResponse{}, err
		}
		return IssueResponse{}, ErrConflict("health issue already resolved")
	}
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q ListQuery, p Page) ([]IssueResponse, int64, error) {
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
	out := make([]IssueResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
