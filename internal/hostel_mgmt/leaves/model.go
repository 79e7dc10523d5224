package leaves

import "time"

// DB行に対応（スキャン用）。日付は DATE → "YYYY-MM-DD"
type leaveRow struct {
	LeaveID        uint64
	StudentID      string
	FromDate       string
	ToDate         string
	Reason         string
	Status         string
	Approver       *string
	HasReturned    bool
	ReturnedBy     *string
	ReturnedDate   *time.Time
	AutoAttendance bool
	CreatedAt      time.Time
}

func (r leaveRow) toDTO() LeaveResponse {
	out := LeaveResponse{
		LeaveID:        r.LeaveID,
		StudentID:      r.StudentID,
		FromDate:       r.FromDate,
		ToDate:         r.ToDate,
		Reason:         r.Reason,
		Status:         r.Status,
		Approver:       r.Approver,
		HasReturned:    r.HasReturned,
		ReturnedBy:     r.ReturnedBy,
		AutoAttendance: r.AutoAttendance,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.ReturnedDate != nil {
		t := r.ReturnedDate.UTC()
		out.ReturnedDate = &t
	}
	return out
}
