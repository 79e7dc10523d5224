package health

import "time"

const (
	StatusOpen     = "open"
	StatusResolved = "resolved"

	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type ReportIssueRequest struct {
	Hostel      string `json:"hostel" binding:"required"`
	Description string `json:"description" binding:"required"`
	Severity    string `json:"severity" binding:"required,oneof=low medium high critical"`
}

type ResolveIssueRequest struct {
	Remarks *string `json:"remarks,omitempty"`
}

type IssueResponse struct {
	IssueID     uint64     `json:"issue_id"`
	StudentID   string     `json:"student_id"`
	Hostel      string     `json:"hostel"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Remarks     *string    `json:"remarks,omitempty"`
	ReportedAt  time.Time  `json:"reported_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  *string    `json:"resolved_by,omitempty"`
}

type ListQuery struct {
	StudentID *string
	Hostel    *string
	Status    *string
	Severity  *string
}
