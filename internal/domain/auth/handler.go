package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resourcehub/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManyAttempts):
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts, try again later")
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "invalid username or password")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
	Role     string `json:"role" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid registration payload")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Username, req.Password, req.Name, UserRole(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "role must be admin or teacher")
		case errors.Is(err, ErrUsernameAlreadyTaken):
			response.Error(c, http.StatusConflict, "VALIDATION_ERROR", "username already taken")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "registration failed")
		}
		return
	}

	response.Success(c, http.StatusCreated, user)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.GetByID(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "user not found")
		return
	}
	response.Success(c, http.StatusOK, user)
}
