package messes

import "time"

type messRow struct {
	MessID     uint64
	Name       string
	Hostel     string
	Capacity   int
	MonthlyFee float64
	Menu       *string
}

type applicationRow struct {
	ApplicationID uint64
	StudentID     string
	MessID        uint64
	Status        string
	DecidedBy     *string
	CreatedAt     time.Time
}

func (r messRow) toDTO() MessResponse {
	return MessResponse{
		MessID:     r.MessID,
		Name:       r.Name,
		Hostel:     r.Hostel,
		Capacity:   r.Capacity,
		MonthlyFee: r.MonthlyFee,
		Menu:       r.Menu,
	}
}

func (r applicationRow) toDTO() ApplicationResponse {
	return ApplicationResponse{
		ApplicationID: r.ApplicationID,
		StudentID:     r.StudentID,
		MessID:        r.MessID,
		Status:        r.Status,
		DecidedBy:     r.DecidedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
