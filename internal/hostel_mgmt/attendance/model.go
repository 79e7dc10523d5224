package attendance

import "time"

// DB行に対応（スキャン用）
type attendanceRow struct {
	AttendanceID uint64
	UserID       string
	AttendedOn   string // DATE → "YYYY-MM-DD"
	Status       string
	MarkedBy     string
	Remarks      *string
	ClockedAt    time.Time
	Latitude     *float64
	Longitude    *float64
	Accuracy     *float64
	LocationAt   *time.Time
}

// Service ↔ Store で使う新規レコード
type NewRecord struct {
	UserID   string
	Day      string // YYYY-MM-DD
	Status   string
	MarkedBy string
	Remarks  *string
	Location *Location
}

func (r attendanceRow) toDTO() AttendanceResponse {
	out := AttendanceResponse{
		AttendanceID: r.AttendanceID,
		UserID:       r.UserID,
		AttendedOn:   r.AttendedOn,
		Status:       r.Status,
		MarkedBy:     r.MarkedBy,
		Remarks:      r.Remarks,
		ClockedAt:    r.ClockedAt.UTC(),
	}
	if r.Latitude != nil && r.Longitude != nil {
		out.Location = &Location{
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
			Accuracy:  r.Accuracy,
			Timestamp: r.LocationAt,
		}
	}
	return out
}
