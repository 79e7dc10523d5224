package notices

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
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
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

func (s *Service) Post(ctx context.Context, postedBy string, in PostNoticeRequest) (NoticeResponse, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return NoticeResponse{}, ErrInvalid("title and body are required")
	}
	id, err := s.store.Insert(ctx, postedBy, in)
	if err != nil {
		return NoticeResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (NoticeResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return NoticeResponse{}, ErrNotFound("notice not found")
		}
		return NoticeResponse{}, err
	}
	return row.toDTO(), nil
}

func (s *Service) Update(ctx context.Context, id uint64, in UpdateNoticeRequest) (NoticeResponse, error) {
	if _, err := s.store.Update(ctx, id, in); err != nil {
		return NoticeResponse{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	aff, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound("notice not found")
	}
	return nil
}

// ListActive: 掲示対象（全体 + 自分の寮）の有効な掲示のみ。
func (s *Service) ListActive(ctx context.Context, hostel string, p Page) ([]NoticeResponse, int64, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	rows, total, err := s.store.ListActive(ctx, hostel, s.now(), p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]NoticeResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}
