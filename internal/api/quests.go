package api

import (
	"errors"
	"net/http"
	"time"

	"questlog/internal/model"
	"questlog/internal/service"
	"questlog/pkg/civil"
	"questlog/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type questRoutes struct {
	qs service.QuestServiceI
}

func NewQuestRoutes(handler *gin.RouterGroup, qs service.QuestServiceI) {
	r := &questRoutes{qs: qs}
	h := handler.Group("/users/:user_id")
	{
		h.POST("/templates", r.CreateTemplate)
		h.GET("/templates", r.ListTemplates)
		h.PUT("/templates/:template_id", r.UpdateTemplate)
		h.DELETE("/templates/:template_id", r.DeactivateTemplate)

		h.GET("/quests/:day", r.ListQuests)
		h.POST("/quests", r.CreateAdhocQuest)
		h.POST("/quests/:instance_id/complete", r.CompleteQuest)

		h.GET("/pool/:day", r.GetPoolStatus)
		h.GET("/streak", r.GetStreak)
		h.POST("/reconcile", r.Reconcile)
	}
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseDay(c *gin.Context) (civil.Date, bool) {
	day, err := civil.Parse(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day, expected YYYY-MM-DD"})
		return "", false
	}
	return day, true
}

func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
	case errors.Is(err, service.ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
	case errors.Is(err, service.ErrInstanceNotOwned), errors.Is(err, service.ErrTemplateNotOwned):
		c.JSON(http.StatusForbidden, gin.H{"error": "not yours"})
	case errors.Is(err, service.ErrInvalidRecurrence):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recurrence rule"})
	case errors.Is(err, service.ErrInvalidBasePoints):
		c.JSON(http.StatusBadRequest, gin.H{"error": "base points must be positive"})
	case errors.Is(err, service.ErrInvalidTimezone):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type TemplateRequest struct {
	Title      string  `json:"title" binding:"required"`
	Recurrence *string `json:"recurrence,omitempty"`
	DueDay     *string `json:"due_day,omitempty"`
	BasePoints int     `json:"base_points" binding:"required"`
}

type TemplateResponse struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Recurrence *string   `json:"recurrence,omitempty"`
	DueDay     *string   `json:"due_day,omitempty"`
	BasePoints int       `json:"base_points"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type QuestResponse struct {
	ID         uuid.UUID  `json:"id"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Day        string     `json:"day"`
	Title      string     `json:"title"`
	BasePoints int        `json:"base_points"`
	Completed  bool       `json:"completed"`
	XPReward   *int       `json:"xp_reward,omitempty"`
	Potential  int        `json:"potential_reward"`
}

func templateResponse(t *model.QuestTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:         t.ID,
		Title:      t.Title,
		Recurrence: t.Recurrence,
		BasePoints: t.BasePoints,
		Active:     t.Active,
		CreatedAt:  t.CreatedAt,
	}
	if t.DueDay != nil {
		s := t.DueDay.String()
		resp.DueDay = &s
	}
	return resp
}

func (r *questRoutes) CreateTemplate(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := service.TemplateInput{
		Title:      req.Title,
		Recurrence: req.Recurrence,
		BasePoints: req.BasePoints,
	}
	if req.DueDay != nil {
		day, err := civil.Parse(*req.DueDay)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_day, expected YYYY-MM-DD"})
			return
		}
		input.DueDay = &day
	}

	tmpl, inst, err := r.qs.CreateTemplate(c.Request.Context(), userID, input)
	if err != nil {
		log.Error("failed to create template", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	resp := gin.H{"template": templateResponse(tmpl)}
	if inst != nil {
		resp["instance"] = QuestResponse{
			ID:         inst.ID,
			TemplateID: inst.TemplateID,
			Day:        inst.Day.String(),
			Title:      inst.Title,
			BasePoints: inst.BasePoints,
			Completed:  inst.Completed,
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func (r *questRoutes) ListTemplates(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	templates, err := r.qs.ListTemplates(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to list templates", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	response := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		response[i] = templateResponse(t)
	}

	c.JSON(http.StatusOK, response)
}

func (r *questRoutes) UpdateTemplate(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	templateID, err := uuid.Parse(c.Param("template_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tmpl := &model.QuestTemplate{
		ID:         templateID,
		UserID:     userID,
		Title:      req.Title,
		Recurrence: req.Recurrence,
		BasePoints: req.BasePoints,
		Active:     true,
	}
	if req.DueDay != nil {
		day, perr := civil.Parse(*req.DueDay)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_day, expected YYYY-MM-DD"})
			return
		}
		tmpl.DueDay = &day
	}

	if err := r.qs.UpdateTemplate(c.Request.Context(), userID, tmpl); err != nil {
		log.Error("failed to update template", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (r *questRoutes) DeactivateTemplate(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	templateID, err := uuid.Parse(c.Param("template_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
		return
	}

	if err := r.qs.DeactivateTemplate(c.Request.Context(), userID, templateID); err != nil {
		log.Error("failed to deactivate template", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (r *questRoutes) ListQuests(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	day, ok := parseDay(c)
	if !ok {
		return
	}

	instances, rewards, err := r.qs.ListQuests(c.Request.Context(), userID, day)
	if err != nil {
		log.Error("failed to list quests", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	response := make([]QuestResponse, len(instances))
	for i, inst := range instances {
		response[i] = QuestResponse{
			ID:         inst.ID,
			TemplateID: inst.TemplateID,
			Day:        inst.Day.String(),
			Title:      inst.Title,
			BasePoints: inst.BasePoints,
			Completed:  inst.Completed,
			XPReward:   inst.XPReward,
			Potential:  rewards[inst.ID],
		}
	}

	c.JSON(http.StatusOK, response)
}

type AdhocQuestRequest struct {
	Title      string `json:"title" binding:"required"`
	BasePoints int    `json:"base_points" binding:"required"`
}

func (r *questRoutes) CreateAdhocQuest(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req AdhocQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	inst, err := r.qs.CreateAdhocInstance(c.Request.Context(), userID, req.Title, req.BasePoints)
	if err != nil {
		log.Error("failed to create ad-hoc quest", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, QuestResponse{
		ID:         inst.ID,
		Day:        inst.Day.String(),
		Title:      inst.Title,
		BasePoints: inst.BasePoints,
	})
}

type CompleteQuestRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (r *questRoutes) CompleteQuest(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	instanceID, err := uuid.Parse(c.Param("instance_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance_id"})
		return
	}

	var req CompleteQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	delta, err := r.qs.CompleteQuest(c.Request.Context(), userID, instanceID, *req.Completed)
	if err != nil {
		log.Error("failed to toggle quest completion", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"xp_delta": delta})
}

func (r *questRoutes) GetPoolStatus(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	day, ok := parseDay(c)
	if !ok {
		return
	}

	pool, err := r.qs.PoolStatus(c.Request.Context(), userID, day)
	if err != nil {
		log.Error("failed to get pool status", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cap":       pool.Cap,
		"consumed":  pool.Consumed,
		"remaining": pool.Remaining,
	})
}

func (r *questRoutes) GetStreak(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	status, err := r.qs.StreakStatus(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to get streak", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	resp := gin.H{
		"streak":       status.Streak,
		"active_today": status.ActiveToday,
	}
	if status.LastActiveDay != nil {
		resp["last_active_day"] = status.LastActiveDay.String()
	}

	c.JSON(http.StatusOK, resp)
}

func (r *questRoutes) Reconcile(c *gin.Context) {
	log := logger.Logger()

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	if err := r.qs.ReconcileNow(c.Request.Context(), userID); err != nil {
		log.Error("failed to reconcile", zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
