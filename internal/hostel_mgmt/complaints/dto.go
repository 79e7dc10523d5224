package complaints

import "time"

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type FileComplaintRequest struct {
	Hostel      string `json:"hostel" binding:"required"`
	Category    string `json:"category" binding:"required"` // e.g. plumbing, electricity, food
	Description string `json:"description" binding:"required"`
}

type UpdateComplaintRequest struct {
	Status     string  `json:"status" binding:"required,oneof=open in_progress resolved rejected"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
}

type ComplaintResponse struct {
	ComplaintID uint64     `json:"complaint_id"`
	StudentID   string     `json:"student_id"`
	Hostel      string     `json:"hostel"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Resolution  *string    `json:"resolution,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type ListQuery struct {
	StudentID *string
	Hostel    *string
	Status    *string
}
