package hostels

import "time"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
	Order  string // asc / desc
}

type CreateHostelRequest struct {
	Name   string `json:"name" binding:"required"`
	Gender string `json:"gender" binding:"required,oneof=male female"`
	Warden string `json:"warden,omitempty"`
}

type UpdateHostelRequest struct {
	Gender *string `json:"gender,omitempty"`
	Warden *string `json:"warden,omitempty"`
}

type HostelResponse struct {
	HostelID      uint64    `json:"hostel_id"`
	Name          string    `json:"name"`
	Gender        string    `json:"gender"`
	Warden        *string   `json:"warden,omitempty"`
	TotalRooms    int       `json:"total_rooms"`
	TotalCapacity int       `json:"total_capacity"`
	CreatedAt     time.Time `json:"created_at"`
}

// ===== hostel requests（入寮申請） =====

type CreateHostelRequestRequest struct {
	Hostel string `json:"hostel" binding:"required"`
}

type DecideHostelRequestRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

type HostelRequestResponse struct {
	RequestID uint64     `json:"request_id"`
	StudentID string     `json:"student_id"`
	Hostel    string     `json:"hostel"`
	Status    string     `json:"status"`
	DecidedBy *string    `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
