package notices

import "time"

const (
	AudienceAll = "all" // それ以外は寮名

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

type PostNoticeRequest struct {
	Title    string     `json:"title" binding:"required"`
	Body     string     `json:"body" binding:"required"`
	Audience string     `json:"audience" binding:"required"` // "all" or hostel name
	ActiveTo *time.Time `json:"active_to,omitempty"`
}

type UpdateNoticeRequest struct {
	Title    *string    `json:"title,omitempty"`
	Body     *string    `json:"body,omitempty"`
	ActiveTo *time.Time `json:"active_to,omitempty"`
}

type NoticeResponse struct {
	NoticeID uint64     `json:"notice_id"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Audience string     `json:"audience"`
	PostedBy string     `json:"posted_by"`
	PostedAt time.Time  `json:"posted_at"`
	ActiveTo *time.Time `json:"active_to,omitempty"`
}
