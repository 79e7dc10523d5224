package attendance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"HMS-backend/internal/platform/auth"
)

type Handler struct {
	svc *Service
	rec *Reconciler
}

func RegisterRoutes(admin, warden, student gin.IRoutes, svc *Service, rec *Reconciler) {
	h := &Handler{svc: svc, rec: rec}

	student.POST("/attendances/self", h.SelfMark)
	student.GET("/my/attendances", h.ListOwn)

	warden.POST("/attendances", h.Upsert)
	warden.GET("/attendances", h.List)
	warden.HEAD("/attendances", h.Exists)
	warden.GET("/attendances/stats", h.Stats)
	warden.GET("/attendances/export", h.ExportCSV)

	admin.POST("/attendances/reconcile", h.Reconcile)
}

func (h *Handler) SelfMark(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	var req SelfMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.SelfMark(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/attendances/"+strconv.FormatUint(res.AttendanceID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Upsert(c *gin.Context) {
	markedBy, _ := auth.CurrentUser(c)

	var req UpsertAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json"))
		return
	}
	res, created, err := h.svc.Upsert(c.Request.Context(), markedBy, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		c.Header("Location", "/attendances/"+strconv.FormatUint(res.AttendanceID, 10))
	}
	c.JSON(status, res)
}

func (h *Handler) Exists(c *gin.Context) {
	userID := c.Query("user_id")
	on := c.DefaultQuery("on", "today")
	ok, err := h.svc.Exists(c.Request.Context(), userID, on)
	if err != nil {
		c.Status(toHTTPStatus(err))
		return
	}
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) List(c *gin.Context) {
	q := queryFromCtx(c)
	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, q)})
}

func (h *Handler) ListOwn(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)
	q := queryFromCtx(c)
	q.UserID = &userID
	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "next_offset": nextOffset(total, q)})
}

func (h *Handler) Stats(c *gin.Context) {
	req := StatsRequest{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Limit: atoiDef(c.Query("limit"), 10),
	}
	rows, err := h.svc.Stats(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *Handler) ExportCSV(c *gin.Context) {
	q := queryFromCtx(c)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="attendances.csv"`)
	if err := h.svc.ExportCSV(c.Request.Context(), c.Writer, q); err != nil {
		// ヘッダ送出後はステータスを変えられないのでログに残すのみ
		_ = c.Error(err)
	}
}

// 手動トリガ。スケジューラと同じ処理を即時実行する。
func (h *Handler) Reconcile(c *gin.Context) {
	res, err := h.rec.RunDaily(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiErr(CodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ===== helpers =====

func queryFromCtx(c *gin.Context) ListQuery {
	var q ListQuery
	if v := c.Query("user_id"); v != "" {
		q.UserID = &v
	}
	if v := c.Query("on"); v != "" {
		q.On = &v
	}
	if v := c.Query("from"); v != "" {
		q.From = &v
	}
	if v := c.Query("to"); v != "" {
		q.To = &v
	}
	if v := c.Query("status"); v != "" {
		q.Status = &v
	}
	q.Limit = atoiDef(c.Query("limit"), DefaultPageLimit)
	q.Offset = atoiDef(c.Query("offset"), 0)
	q.Sort = c.Query("sort")
	return q
}

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

func nextOffset(total int64, q ListQuery) int {
	n := q.Offset + q.Limit
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
