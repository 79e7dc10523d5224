package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	ulid "github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleStudent = "student"
	RoleWarden  = "warden"
	RoleAdmin   = "admin"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalidRole   = errors.New("invalid role")
)

func validRole(r string) bool {
	return r == RoleStudent || r == RoleWarden || r == RoleAdmin
}

type Service struct {
	store    AccountStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(db *sql.DB, secret string, ttlHours int) *Service {
	return &Service{
		store:    NewStore(db),
		secret:   []byte(secret),
		tokenTTL: time.Duration(ttlHours) * time.Hour,
	}
}

type AuthService interface {
	Login(ctx context.Context, id, password string) (string, error)
	Register(ctx context.Context, in RegisterInput) (*Account, error)
	Delete(ctx context.Context, id string) error
	ChangeID(ctx context.Context, oldID, newID string) error
	Assign(ctx context.Context, id, hostel string, floor int) error
}

type RegisterInput struct {
	ID             string
	Password       string
	Role           string
	Gender         string
	AssignedHostel string
	AssignedFloor  int
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", errors.New("authentication failed")
	}
	if acct.IsDisabled {
		return "", errors.New("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("authentication failed")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  acct.ID,
		"role": acct.Role,
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if !validRole(in.Role) {
		return nil, ErrInvalidRole
	}

	exists, err := s.store.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		ID:             in.ID,
		PasswordHash:   string(hash),
		Role:           in.Role,
		Gender:         in.Gender,
		AssignedHostel: in.AssignedHostel,
		AssignedFloor:  in.AssignedFloor,
		IsDisabled:     false,
	}
	// 学生には寮内IDを採番（掲示・点呼で使う短い一意文字列）
	if in.Role == RoleStudent {
		acct.HostelID = "HST-" + ulid.Make().String()
	}

	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ChangeID(ctx context.Context, oldID, newID string) error {
	// old が存在するか
	old, err := s.store.GetByID(ctx, oldID)
	if err != nil {
		return err
	}
	if old == nil {
		return ErrNotFound
	}

	// new が空いてるか
	nw, err := s.store.GetByID(ctx, newID)
	if err != nil {
		return err
	}
	if nw != nil {
		return ErrAlreadyExists
	}

	updated, err := s.store.UpdateID(ctx, oldID, newID)
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Assign(ctx context.Context, id, hostel string, floor int) error {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	if acct.Role != RoleWarden {
		return ErrInvalidRole
	}
	_, err = s.store.UpdateAssignment(ctx, id, hostel, floor)
	return err
}
