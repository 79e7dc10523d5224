package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc AuthService }

func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.DELETE("/accounts/:id", h.DeleteAccount)
	r.PATCH("/accounts/:id", h.ChangeUsername) // “ユーザー名変更” = id変更
	r.PUT("/accounts/:id/assignment", h.AssignWarden)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "IDまたはパスワードが間違っています"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Login successful",
	})
}

type RegisterRequest struct {
	ID             string  `json:"id" binding:"required"`
	Password       string  `json:"password" binding:"required"`
	Role           *string `json:"role,omitempty"` // 未指定なら student
	Gender         string  `json:"gender,omitempty"`
	AssignedHostel string  `json:"assigned_hostel,omitempty"`
	AssignedFloor  int     `json:"assigned_floor,omitempty"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	role := RoleStudent
	if req.Role != nil && *req.Role != "" {
		role = *req.Role
	}

	acct, err := h.svc.Register(c.Request.Context(), RegisterInput{
		ID:             req.ID,
		Password:       req.Password,
		Role:           role,
		Gender:         req.Gender,
		AssignedHostel: req.AssignedHostel,
		AssignedFloor:  req.AssignedFloor,
	})
	if err != nil {
		if err == ErrAlreadyExists {
			c.JSON(http.StatusConflict, gin.H{"error": "ID already exists"})
			return
		}
		if err == ErrInvalidRole {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student, warden or admin"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "registered",
		"hostel_id": acct.HostelID,
	})
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type ChangeUsernameRequest struct {
	NewID string `json:"new_id" binding:"required"`
}

func (h *AuthHandler) ChangeUsername(c *gin.Context) {
	oldID := c.Param("id")

	var req ChangeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.svc.ChangeID(c.Request.Context(), oldID, req.NewID); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err == ErrAlreadyExists {
			c.JSON(http.StatusConflict, gin.H{"error": "new id already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change id failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "username changed"})
}

type AssignWardenRequest struct {
	Hostel string `json:"hostel" binding:"required"`
	Floor  int    `json:"floor"`
}

func (h *AuthHandler) AssignWarden(c *gin.Context) {
	id := c.Param("id")

	var req AssignWardenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.svc.Assign(c.Request.Context(), id, req.Hostel, req.Floor); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err == ErrInvalidRole {
			c.JSON(http.StatusBadRequest, gin.H{"error": "assignment is for wardens only"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assignment failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "assignment updated"})
}
