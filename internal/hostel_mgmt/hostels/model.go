package hostels

import "time"

// DB行に対応（スキャン用）
type hostelRow struct {
	HostelID      uint64
	Name          string
	Gender        string
	Warden        *string
	TotalRooms    int
	TotalCapacity int
	CreatedAt     time.Time
}

func (r hostelRow) toDTO() HostelResponse {
	return HostelResponse{
		HostelID:      r.HostelID,
		Name:          r.Name,
		Gender:        r.Gender,
		Warden:        r.Warden,
		TotalRooms:    r.TotalRooms,
		TotalCapacity: r.TotalCapacity,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type requestRow struct {
	RequestID uint64
	StudentID string
	Hostel    string
	Status    string
	DecidedBy *string
	DecidedAt *time.Time
	CreatedAt time.Time
}

func (r requestRow) toDTO() HostelRequestResponse {
	return HostelRequestResponse{
		RequestID: r.RequestID,
		StudentID: r.StudentID,
		Hostel:    r.Hostel,
		Status:    r.Status,
		DecidedBy: r.DecidedBy,
		DecidedAt: r.DecidedAt,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
