package hostels

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"HMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// admin: ルート群側で RequireRole 済み。student: 申請系のみ。
func RegisterRoutes(admin, warden, student gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	admin.POST("/hostels", h.Create)
	admin.PUT("/hostels/:hostel_id", h.Update)
	admin.DELETE("/hostels/:hostel_id", h.Delete)
	admin.POST("/hostels/recompute", h.Recompute)

	warden.GET("/hostels", h.List)
	warden.GET("/hostels/:hostel_id", h.Get)
	warden.GET("/hostel-requests", h.ListRequests)
	warden.PUT("/hostel-requests/:request_id", h.DecideRequest)

	student.POST("/hostel-requests", h.SubmitRequest)
	student.GET("/my/hostel-requests", h.ListOwnRequests)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateHostelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/hostels/"+strconv.FormatUint(res.HostelID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("hostel_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "hostel_id must be a number"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "asc")),
	}
	items, total, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("hostel_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "hostel_id must be a number"))
		return
	}
	var req UpdateHostelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("hostel_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "hostel_id must be a number"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) Recompute(c *gin.Context) {
	n, err := h.svc.Recompute(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// ===== hostel requests =====

func (h *Handler) SubmitRequest(c *gin.Context) {
	student, _ := auth.CurrentUser(c)

	var req CreateHostelRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.SubmitRequest(c.Request.Context(), student, req.Hostel)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) DecideRequest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("request_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "request_id must be a number"))
		return
	}
	decider, _ := auth.CurrentUser(c)

	var req DecideHostelRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.DecideRequest(c.Request.Context(), id, decider, req.Decision)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListRequests(c *gin.Context) {
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.ListRequests(c.Request.Context(), c.Query("student"), c.Query("status"), p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) ListOwnRequests(c *gin.Context) {
	student, _ := auth.CurrentUser(c)
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.ListRequests(c.Request.Context(), student, c.Query("status"), p)
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
