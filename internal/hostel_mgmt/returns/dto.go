package returns

import "time"

const (
	PermissionPending  = "pending"
	PermissionApproved = "approved"
	PermissionDenied   = "denied"

	DateLayout       = "2006-01-02"
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type Location struct {
	Latitude  float64    `json:"latitude" binding:"required"`
	Longitude float64    `json:"longitude" binding:"required"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ReportReturnRequest struct {
	LeaveID            *uint64   `json:"leave_id,omitempty"`
	ExpectedReturnDate string    `json:"expected_return_date" binding:"required"` // YYYY-MM-DD
	Location           *Location `json:"location,omitempty"`
}

type GrantAccessRequest struct {
	Decision string  `json:"decision" binding:"required,oneof=approved denied"`
	Remarks  *string `json:"remarks,omitempty"`
}

type ReturnResponse struct {
	ReturnID            uint64     `json:"return_id"`
	StudentID           string     `json:"student_id"`
	LeaveID             *uint64    `json:"leave_id,omitempty"`
	ReportedDate        time.Time  `json:"reported_date"`
	ExpectedReturnDate  string     `json:"expected_return_date"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty"`
	Permission          string     `json:"hostel_access_permission"`
	PermissionGrantedBy *string    `json:"permission_granted_by,omitempty"`
	PermissionGrantedAt *time.Time `json:"permission_granted_at,omitempty"`
	Remarks             *string    `json:"remarks,omitempty"`
	Location            *Location  `json:"location,omitempty"`
}

type ListQuery struct {
	StudentID  *string
	Permission *string
}
