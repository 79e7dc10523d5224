package messes

import "time"

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type CreateMessRequest struct {
	Name       string  `json:"name" binding:"required"`
	Hostel     string  `json:"hostel" binding:"required"`
	Capacity   int     `json:"capacity" binding:"required,gt=0"`
	MonthlyFee float64 `json:"monthly_fee" binding:"gte=0"`
	Menu       *string `json:"menu,omitempty"`
}

type UpdateMessRequest struct {
	Capacity   *int     `json:"capacity,omitempty"`
	MonthlyFee *float64 `json:"monthly_fee,omitempty"`
	Menu       *string  `json:"menu,omitempty"`
}

type MessResponse struct {
	MessID     uint64  `json:"mess_id"`
	Name       string  `json:"name"`
	Hostel     string  `json:"hostel"`
	Capacity   int     `json:"capacity"`
	MonthlyFee float64 `json:"monthly_fee"`
	Menu       *string `json:"menu,omitempty"`
}

type ApplyRequest struct {
	MessID uint64 `json:"mess_id" binding:"required"`
}

type DecideApplicationRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

type ApplicationResponse struct {
	ApplicationID uint64    `json:"application_id"`
	StudentID     string    `json:"student_id"`
	MessID        uint64    `json:"mess_id"`
	Status        string    `json:"status"`
	DecidedBy     *string   `json:"decided_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
