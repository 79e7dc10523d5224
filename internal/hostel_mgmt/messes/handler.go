package messes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"HMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(admin, warden, student gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	admin.POST("/messes", h.Create)
	admin.PUT("/messes/:mess_id", h.Update)
	admin.DELETE("/messes/:mess_id", h.Delete)

	warden.GET("/messes", h.List)
	warden.GET("/messes/:mess_id", h.Get)
	warden.GET("/mess-applications", h.ListApplications)
	warden.PUT("/mess-applications/:application_id/decision", h.Decide)

	student.POST("/mess-applications", h.Apply)
	student.GET("/my/mess-applications", h.ListOwnApplications)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateMessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/messes/"+strconv.FormatUint(res.MessID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("mess_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "mess_id must be a number"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("mess_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "mess_id must be a number"))
		return
	}
	var req UpdateMessRequest
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
	id, err := strconv.ParseUint(c.Param("mess_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "mess_id must be a number"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) List(c *gin.Context) {
	var hostel *string
	if v := c.Query("hostel"); v != "" {
		hostel = &v
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.List(c.Request.Context(), hostel, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) Apply(c *gin.Context) {
	student, _ := auth.CurrentUser(c)

	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.Apply(c.Request.Context(), student, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Decide(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("application_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "application_id must be a number"))
		return
	}
	decider, _ := auth.CurrentUser(c)

	var req DecideApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.DecideApplication(c.Request.Context(), id, decider, req.Decision)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListApplications(c *gin.Context) {
	var student, status *string
	if v := c.Query("student"); v != "" {
		student = &v
	}
	if v := c.Query("status"); v != "" {
		status = &v
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.ListApplications(c.Request.Context(), student, status, p)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) ListOwnApplications(c *gin.Context) {
	student, _ := auth.CurrentUser(c)
	p := Page{
		Limit:  atoiDef(c.Query("limit"), DefaultPageLimit),
		Offset: atoiDef(c.Query("offset"), 0),
	}
	items, total, err := h.svc.ListApplications(c.Request.Context(), &student, nil, p)
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
