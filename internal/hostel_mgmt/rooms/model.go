package rooms

import "time"

// DB行に対応（スキャン用）。occupants は別テーブルなので含めない。
type roomRow struct {
	RoomID            uint64
	Hostel            string
	Floor             int
	Number            string
	RoomType          string
	Capacity          int
	Gender            string
	AssignedWarden    *string
	MaintenanceStatus string
	CreatedAt         time.Time
}

func (r roomRow) toDTO(occupants []string) RoomResponse {
	if occupants == nil {
		occupants = []string{}
	}
	return RoomResponse{
		RoomID:            r.RoomID,
		Hostel:            r.Hostel,
		Floor:             r.Floor,
		Number:            r.Number,
		RoomType:          r.RoomType,
		Capacity:          r.Capacity,
		Gender:            r.Gender,
		AssignedWarden:    r.AssignedWarden,
		MaintenanceStatus: r.MaintenanceStatus,
		Occupants:         occupants,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}
