package leaves

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

	student.POST("/leaves", h.Submit)
	student.GET("/my/leaves", h.ListOwn)

	warden.GET("/leaves", h.List)
	warden.GET("/leaves/:leave_id", h.Get)
	warden.PUT("/leaves/:leave_id/decision", h.Decide)
	warden.PUT("/leaves/:leave_id/returned", h.MarkReturned)
}

func (h *Handler) Submit(c *gin.Context) {
	student, _ := auth.CurrentUser(c)

	var req SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Submit(c.Request.Context(), student, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/leaves/"+strconv.FormatUint(res.LeaveID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("leave_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "leave_id must be a number"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Decide(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("leave_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "leave_id must be a number"))
		return
	}
	approver, _ := auth.CurrentUser(c)

	var req DecideLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Decide(c.Request.Context(), id, approver, req.Decision)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkReturned(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("leave_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "leave_id must be a number"))
		return
	}

	warden, _ := auth.CurrentUser(c)

	var req MarkReturnedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.MarkReturnedDirectly(c.Request.Context(), id, warden, req.ReturnDate)
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
