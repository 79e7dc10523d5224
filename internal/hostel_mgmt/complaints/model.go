package complaints

import "time"

type complaintRow struct {
	ComplaintID uint64
	StudentID   string
	Hostel      string
	Category    string
	Description string
	Status      string
	AssignedTo  *string
	Resolution  *string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

func (r complaintRow) toDTO() ComplaintResponse {
	return ComplaintResponse{
		ComplaintID: r.ComplaintID,
		StudentID:   r.StudentID,
		Hostel:      r.Hostel,
		Category:    r.Category,
		Description: r.Description,
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
		Resolution:  r.Resolution,
		CreatedAt:   r.CreatedAt.UTC(),
		ResolvedAt:  r.ResolvedAt,
	}
}
