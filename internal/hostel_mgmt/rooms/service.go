package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"HMS-backend/internal/platform/db"
)

// ===== Error model (hostels/attendance と同型 + ドメイン固有コード) =====
type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	CodeGenderMismatch   Code = "GENDER_MISMATCH"
	CodeInternal         Code = "INTERNAL"
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

func ErrCapacityExceeded() *APIError {
	return &APIError{Code: CodeCapacityExceeded, Message: "room is at full capacity"}
}
func ErrGenderMismatch() *APIError {
	return &APIError{Code: CodeGenderMismatch, Message: "student gender does not match room gender"}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict, CodeCapacityExceeded, CodeGenderMismatch:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== collaborators =====

// rooms が触るストア操作。テストでは in-memory 実装に差し替える。
type RoomStore interface {
	Insert(ctx context.Context, in CreateRoomRequest) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*roomRow, error)
	List(ctx context.Context, q SearchQuery, p Page) ([]roomRow, int64, error)
	Update(ctx context.Context, id uint64, in UpdateRoomRequest) (int64, error)
	Delete(ctx context.Context, id uint64) (int64, error)
	Occupants(ctx context.Context, roomID uint64) ([]string, error)
	OccupantCount(ctx context.Context, roomID uint64) (int, error)
	AssignOccupant(ctx context.Context, roomID uint64, capacity int, student string) error
	RemoveOccupant(ctx context.Context, student string) (int64, error)
	RoomOfStudent(ctx context.Context, student string) (uint64, bool, error)
	StudentGender(ctx context.Context, student string) (string, error)
}

// 寮側の集計台帳。hostels.Store が実装する。
type Ledger interface {
	ApplyRoomCreated(ctx context.Context, hostel string, capacity int) error
	ApplyRoomCapacityChanged(ctx context.Context, hostel string, delta int) error
	ApplyRoomDeleted(ctx context.Context, hostel string, capacity int) error
}

// ===== Service =====

type Service struct {
	store  RoomStore
	ledger Ledger
}

func NewService(conn *sql.DB, ledger Ledger) *Service {
	return &Service{store: NewStore(conn), ledger: ledger}
}

// テスト用
func newService(store RoomStore, ledger Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

func (s *Service) Create(ctx context.Context, in CreateRoomRequest) (RoomResponse, error) {
	if strings.TrimSpace(in.Hostel) == "" || strings.TrimSpace(in.Number) == "" {
		return RoomResponse{}, ErrInvalid("hostel and number are required")
	}
	if in.Capacity <= 0 {
		return RoomResponse{}, ErrInvalid("capacity must be positive")
	}

	id, err := s.store.Insert(ctx, in)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return RoomResponse{}, ErrConflict("room number already exists in this hostel")
		}
		return RoomResponse{}, err
	}

	// 集計更新は別書き込み。寮が見つからない場合は Store 側でログのみ。
	if err := s.ledger.ApplyRoomCreated(ctx, in.Hostel, in.Capacity); err != nil {
		return RoomResponse{}, err
	}

	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint64) (RoomResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return RoomResponse{}, ErrNotFound("room not found")
		}
		return RoomResponse{}, err
	}
	occ, err := s.store.Occupants(ctx, id)
	if err != nil {
		return RoomResponse{}, err
	}
	return row.toDTO(occ), nil
}

func (s *Service) List(ctx context.Context, q SearchQuery, p Page) ([]RoomResponse, int64, error) {
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
	out := make([]RoomResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		occ, err := s.store.Occupants(ctx, rows[i].RoomID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rows[i].toDTO(occ))
	}
	return out, total, nil
}

func (s *Service) Update(ctx context.Context, id uint64, in UpdateRoomRequest) (RoomResponse, error) {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return RoomResponse{}, ErrNotFound("room not found")
		}
		return RoomResponse{}, err
	}

	if in.MaintenanceStatus != nil {
		switch *in.MaintenanceStatus {
		case MaintenanceNone, MaintenanceRequired, MaintenanceOngoing:
		default:
			return RoomResponse{}, ErrInvalid("maintenance_status must be none, required or ongoing")
		}
	}

	oldCapacity := row.Capacity
	if in.Capacity != nil {
		if *in.Capacity <= 0 {
			return RoomResponse{}, ErrInvalid("capacity must be positive")
		}
		n, err := s.store.OccupantCount(ctx, id)
		if err != nil {
			return RoomResponse{}, err
		}
		if *in.Capacity < n {
			return RoomResponse{}, ErrConflict("capacity cannot drop below current occupancy")
		}
	}

	if _, err := s.store.Update(ctx, id, in); err != nil {
		return RoomResponse{}, err
	}

	if in.Capacity != nil && *in.Capacity != oldCapacity {
		if err := s.ledger.ApplyRoomCapacityChanged(ctx, row.Hostel, *in.Capacity-oldCapacity); err != nil {
			return RoomResponse{}, err
		}
	}

	return s.Get(ctx, id)
}

// 入居者が残っている部屋は消せない
func (s *Service) Delete(ctx context.Context, id uint64) error {
	row, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound("room not found")
		}
		return err
	}

	n, err := s.store.OccupantCount(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict("room still has occupants")
	}

	aff, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound("room not found")
	}

	return s.ledger.ApplyRoomDeleted(ctx, row.Hostel, row.Capacity)
}

// AssignStudent: 事前条件は
//   - 空きがある（満室なら CAPACITY_EXCEEDED）
//   - 学生と部屋の性別が一致（違えば GENDER_MISMATCH）
//
// 旧配属からの除去と新配属は Store が1トランザクションで行う。
func (s *Service) AssignStudent(ctx context.Context, roomID uint64, student string) (RoomResponse, error) {
	if strings.TrimSpace(student) == "" {
		return RoomResponse{}, ErrInvalid("student_id is required")
	}

	row, err := s.store.GetByID(ctx, roomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return RoomResponse{}, ErrNotFound("room not found")
		}
		return RoomResponse{}, err
	}

	gender, err := s.store.StudentGender(ctx, student)
	if err != nil {
		if err == sql.ErrNoRows {
			return RoomResponse{}, ErrNotFound("student not found")
		}
		return RoomResponse{}, err
	}
	if gender != "" && row.Gender != "" && gender != row.Gender {
		return RoomResponse{}, ErrGenderMismatch()
	}

	if err := s.store.AssignOccupant(ctx, roomID, row.Capacity, student); err != nil {
		if errors.Is(err, errRoomFull) {
			return RoomResponse{}, ErrCapacityExceeded()
		}
		return RoomResponse{}, err
	}

	return s.Get(ctx, roomID)
}

// UnassignStudent: 未配属なら no-op
func (s *Service) UnassignStudent(ctx context.Context, student string) error {
	if strings.TrimSpace(student) == "" {
		return ErrInvalid("student_id is required")
	}
	_, err := s.store.RemoveOccupant(ctx, student)
	return err
}
