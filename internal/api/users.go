package api

import (
	"errors"
	"net/http"
	"time"

	"questlog/internal/service"
	"questlog/pkg/civil"
	"questlog/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type userRoutes struct {
	us service.UserServiceI
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI) {
	r := &userRoutes{us: us}
	h := handler.Group("/users")
	{
		h.POST("", r.RegisterUser)
		h.GET("/:user_id", r.GetUser)
		h.PATCH("/:user_id/timezone", r.UpdateTimezone)
	}
	handler.GET("/leaderboard", r.GetLeaderboard)
}

type RegisterUserRequest struct {
	Timezone string `json:"timezone"`
}

type UserResponse struct {
	ID            uuid.UUID   `json:"id"`
	Timezone      string      `json:"timezone"`
	XP            int         `json:"xp"`
	Level         int         `json:"level"`
	Streak        int         `json:"streak"`
	LastActiveDay *civil.Date `json:"last_active_day,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := r.us.RegisterUser(c.Request.Context(), req.Timezone)
	if err != nil {
		log.Error("failed to register user", zap.Error(err))
		if errors.Is(err, service.ErrInvalidTimezone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:            user.ID,
		Timezone:      user.Timezone,
		XP:            user.XP,
		Level:         service.LevelForXP(user.XP),
		Streak:        user.Streak,
		LastActiveDay: user.LastActiveDay,
		CreatedAt:     user.CreatedAt,
	})
}

func (r *userRoutes) GetUser(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	user, err := r.us.GetUser(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:            user.ID,
		Timezone:      user.Timezone,
		XP:            user.XP,
		Level:         service.LevelForXP(user.XP),
		Streak:        user.Streak,
		LastActiveDay: user.LastActiveDay,
		CreatedAt:     user.CreatedAt,
	})
}

type UpdateTimezoneRequest struct {
	Timezone string `json:"timezone" binding:"required"`
}

func (r *userRoutes) UpdateTimezone(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	var req UpdateTimezoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err = r.us.UpdateTimezone(c.Request.Context(), id, req.Timezone)
	if err != nil {
		log.Error("failed to update timezone", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrInvalidTimezone):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update timezone"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	users, err := r.us.GetLeaderboard(c.Request.Context())
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	response := make([]UserResponse, len(users))
	for i, user := range users {
		response[i] = UserResponse{
			ID:        user.ID,
			Timezone:  user.Timezone,
			XP:        user.XP,
			Level:     service.LevelForXP(user.XP),
			Streak:    user.Streak,
			CreatedAt: user.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, response)
}
