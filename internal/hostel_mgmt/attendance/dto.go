package attendance

import "time"

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLeave   = "leave"

	SortClockedAtDesc  = "clocked_at_desc"
	SortClockedAtAsc   = "clocked_at_asc"
	SortAttendedOnDesc = "attended_on_desc"
	SortAttendedOnAsc  = "attended_on_asc"
	DefaultPageLimit   = 50
	MaxPageLimit       = 200
	DefaultSort        = SortClockedAtDesc
	DateLayout         = "2006-01-02"
)

type Location struct {
	Latitude  float64    `json:"latitude" binding:"required"`
	Longitude float64    `json:"longitude" binding:"required"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// 学生の自己申告。date は "YYYY-MM-DD" か "today"。当日以外は弾く。
type SelfMarkRequest struct {
	Date     *string   `json:"date,omitempty"`
	Remarks  *string   `json:"remarks,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// 寮母・管理者による記録（上書きあり）
type UpsertAttendanceRequest struct {
	UserID     string    `json:"user_id" binding:"required"`
	AttendedOn *string   `json:"attended_on,omitempty"` // "YYYY-MM-DD" or "today"
	Status     string    `json:"status" binding:"required,oneof=present absent leave"`
	Remarks    *string   `json:"remarks,omitempty"`
	Location   *Location `json:"location,omitempty"`
}

type AttendanceResponse struct {
	AttendanceID uint64    `json:"attendance_id"`
	UserID       string    `json:"user_id"`
	AttendedOn   string    `json:"attended_on"` // YYYY-MM-DD
	Status       string    `json:"status"`
	MarkedBy     string    `json:"marked_by"`
	Remarks      *string   `json:"remarks,omitempty"`
	ClockedAt    time.Time `json:"clocked_at"`
	Location     *Location `json:"location,omitempty"`
}

type ListQuery struct {
	UserID *string
	On     *string
	From   *string
	To     *string
	Status *string
	Limit  int
	Offset int
	Sort   string
}

type StatsRequest struct {
	From  string // YYYY-MM-DD
	To    string // YYYY-MM-DD
	Limit int
}

type StatsRow struct {
	UserID  string `json:"user_id"`
	Present int64  `json:"present"`
	Absent  int64  `json:"absent"`
	Leave   int64  `json:"leave"`
}

// Reconciler の実行結果。considered は対象にした休暇の件数（作成件数ではない）。
type ReconcileResult struct {
	Considered int  `json:"considered"`
	Created    int  `json:"created"`
	Failed     int  `json:"failed"`
	Success    bool `json:"success"`
}
