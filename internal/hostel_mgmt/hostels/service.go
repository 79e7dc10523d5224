package hostels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"HMS-backend/internal/platform/db"
)

// ===== Error model (attendance/rooms と同型) =====
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

func (s *Service) Create(ctx context.Context, in CreateHostelRequest) (HostelResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return HostelResponse{}, ErrInvalid("name is required")
	}

	id, err := s.store.Insert(ctx, in)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return HostelResponse{}, ErrConflict("hostel name already exists")
		}
		return HostelResponse{}, err
	}

	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		return HostelResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Get(ctx context.Context, id uint64) (HostelResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return HostelResponse{}, ErrNotFound("hostel not found")
		}
		return HostelResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) List(ctx context.Context, p Page) ([]HostelResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.List(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]HostelResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

func (s *Service) Update(ctx context.Context, id uint64, in UpdateHostelRequest) (HostelResponse, error) {
	if _, err := s.store.Update(ctx, id, in); err != nil {
		return HostelResponse{}, err
	}
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return HostelResponse{}, ErrNotFound("hostel not found")
		}
		return HostelResponse{}, err
	}
	return row.toDTO(), nil
}

// 部屋が残っている寮は消せない
func (s *Service) Delete(ctx context.Context, id uint64) error {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound("hostel not found")
		}
		return err
	}
	n, err := s.store.RoomCount(ctx, row.Name)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict("hostel still has rooms")
	}
	if _, err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	return nil
}

// Recompute: rooms を正として total_rooms / total_capacity を引き直す
func (s *Service) Recompute(ctx context.Context) (int64, error) {
	return s.store.RecomputeAggregates(ctx)
}

// ===== hostel requests =====

func (s *Service) SubmitRequest(ctx context.Context, student, hostel string) (HostelRequestResponse, error) {
	if strings.TrimSpace(hostel) == "" {
		return HostelRequestResponse{}, ErrInvalid("hostel is required")
	}
	if _, err := s.store.GetByName(ctx, hostel); err != nil {
		if err == sql.ErrNoRows {
			return HostelRequestResponse{}, ErrNotFound("hostel not found")
		}
		return HostelRequestResponse{}, err
	}

	id, err := s.store.InsertRequest(ctx, student, hostel)
	if err != nil {
		return HostelRequestResponse{}, err
	}
	row, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return HostelRequestResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) DecideRequest(ctx context.Context, id uint64, decider, decision string) (HostelRequestResponse, error) {
	if decision != "approved" && decision != "rejected" {
		return HostelRequestResponse{}, ErrInvalid("decision must be approved or rejected")
	}

	aff, err := s.store.DecideRequest(ctx, id, decider, decision)
	if err != nil {
		return HostelRequestResponse{}, err
	}
	if aff == 0 {
		// 無い or 既決。どちらかを区別して返す
		if _, err := s.store.GetRequest(ctx, id); err != nil {
			if err == sql.ErrNoRows {
				return HostelRequestResponse{}, ErrNotFound("request not found")
			}
			return HostelRequestResponse{}, err
		}
		return HostelRequestResponse{}, ErrConflict("request already decided")
	}

	row, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return HostelRequestResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) ListRequests(ctx context.Context, student, status string, p Page) ([]HostelRequestResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.ListRequests(ctx, student, status, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]HostelRequestResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
