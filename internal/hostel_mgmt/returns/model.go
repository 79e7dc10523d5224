package returns

import "time"

// DB行に対応（スキャン用）
type returnRow struct {
	ReturnID            uint64
	StudentID           string
	LeaveID             *uint64
	ReportedDate        time.Time
	ExpectedReturnDate  string
	ActualReturnDate    *time.Time
	Permission          string
	PermissionGrantedBy *string
	PermissionGrantedAt *time.Time
	Remarks             *string
	Latitude            *float64
	Longitude           *float64
	Accuracy            *float64
	LocationAt          *time.Time
}

func (r returnRow) toDTO() ReturnResponse {
	out := ReturnResponse{
		ReturnID:            r.ReturnID,
		StudentID:           r.StudentID,
		LeaveID:             r.LeaveID,
		ReportedDate:        r.ReportedDate.UTC(),
		ExpectedReturnDate:  r.ExpectedReturnDate,
		ActualReturnDate:    r.ActualReturnDate,
		Permission:          r.Permission,
		PermissionGrantedBy: r.PermissionGrantedBy,
		PermissionGrantedAt: r.PermissionGrantedAt,
		Remarks:             r.Remarks,
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
