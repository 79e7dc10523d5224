package complaints

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"HMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(warden, student gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	student.POST("/complaints", h.File)
	student.GET("/my/complaints", h.ListOwn)

	warden.GET("/complaints", h.List)
	warden.GET("/complaints/:complaint_id", h.Get)
	warden.PUT("/complaints/:complaint_id/status", h.UpdateStatus)
}

func (h *Handler) File(c *gin.Context) {
	student, _ := auth.CurrentUser(c)

	var req FileComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.File(c.Request.Context(), student, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/complaints/"+strconv.FormatUint(res.ComplaintID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("complaint_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "complaint_id must be a number"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("complaint_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "complaint_id must be a number"))
		return
	}
	var req UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var q ListQuery
	if v := c.Query("student"); v != "" {
		q.StudentID = &v
	}
	if v := c.Query("hostel"); v != "" {
		q.Hostel = &v
	}
	if v := c.Query("status"); v != "" {
		q.Status = &v
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.List(c.Request.Context(), q, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) ListOwn(c *gin.Context) {
	student, _ := auth.CurrentUser(c)
	q := ListQuery{StudentID: &student}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.List(c.Request.Context(), q, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

// ===== helpers =====

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func nextOffset(total int64, p Page) int {
	n := p.Offset + p.Limit
	if n >= int(total) {
		return 0
	}
	return n
}

type errDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func apiErr(code Code, msg string) errDTO {
	var e errDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func apiErrFrom(err error) errDTO {
	var api *APIError
	if errors.As(err, &api) {
		return apiErr(api.Code, api.Message)
	}
	return apiErr(CodeInternal, err.Error())
}
