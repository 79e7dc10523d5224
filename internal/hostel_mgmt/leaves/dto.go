package leaves

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	DateLayout       = "2006-01-02"
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type SubmitLeaveRequest struct {
	FromDate string `json:"from_date" binding:"required"` // YYYY-MM-DD
	ToDate   string `json:"to_date" binding:"required"`   // YYYY-MM-DD
	Reason   string `json:"reason" binding:"required"`
	// 省略時 true。false にすると在外中の自動「leave」記録を抑止する。
	AutoAttendance *bool `json:"auto_attendance,omitempty"`
}

type DecideLeaveRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

type MarkReturnedRequest struct {
	ReturnDate *string `json:"return_date,omitempty"` // YYYY-MM-DD、省略時は今日
}

type LeaveResponse struct {
	LeaveID        uint64     `json:"leave_id"`
	StudentID      string     `json:"student_id"`
	FromDate       string     `json:"from_date"`
	ToDate         string     `json:"to_date"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	Approver       *string    `json:"approver,omitempty"`
	HasReturned    bool       `json:"has_returned"`
	ReturnedBy     *string    `json:"returned_by,omitempty"`
	ReturnedDate   *time.Time `json:"returned_date,omitempty"`
	AutoAttendance bool       `json:"auto_attendance"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ListQuery struct {
	StudentID *string
	Status    *string
}
