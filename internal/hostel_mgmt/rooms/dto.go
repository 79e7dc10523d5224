package rooms

import "time"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200

	MaintenanceNone     = "none"
	MaintenanceRequired = "required"
	MaintenanceOngoing  = "ongoing"
)

type Page struct {
	Limit  int
	Offset int
	Order  string
}

type CreateRoomRequest struct {
	Hostel         string `json:"hostel" binding:"required"`
	Floor          int    `json:"floor" binding:"required"`
	Number         string `json:"number" binding:"required"`
	RoomType       string `json:"room_type" binding:"required,oneof=single double triple quad"`
	Capacity       int    `json:"capacity" binding:"required,min=1"`
	Gender         string `json:"gender" binding:"required,oneof=male female"`
	AssignedWarden string `json:"assigned_warden,omitempty"`
}

type UpdateRoomRequest struct {
	Capacity          *int    `json:"capacity,omitempty"`
	RoomType          *string `json:"room_type,omitempty"`
	AssignedWarden    *string `json:"assigned_warden,omitempty"`
	MaintenanceStatus *string `json:"maintenance_status,omitempty"`
}

type AssignStudentRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

type RoomResponse struct {
	RoomID            uint64    `json:"room_id"`
	Hostel            string    `json:"hostel"`
	Floor             int       `json:"floor"`
	Number            string    `json:"number"`
	RoomType          string    `json:"room_type"`
	Capacity          int       `json:"capacity"`
	Gender            string    `json:"gender"`
	AssignedWarden    *string   `json:"assigned_warden,omitempty"`
	MaintenanceStatus string    `json:"maintenance_status"`
	Occupants         []string  `json:"occupants"`
	CreatedAt         time.Time `json:"created_at"`
}

type SearchQuery struct {
	Hostel      *string
	Floor       *int
	RoomType    *string
	Maintenance *string
}
