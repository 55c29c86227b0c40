package api

import (
	"questlog/internal/events"
	"questlog/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type eventRoutes struct {
	hub *events.Hub
}

// NewEventRoutes exposes the engine event feed. The achievement
// observer subscribes here.
func NewEventRoutes(handler *gin.RouterGroup, hub *events.Hub) {
	r := &eventRoutes{hub: hub}
	handler.GET("/events/ws", r.Subscribe)
}

func (r *eventRoutes) Subscribe(c *gin.Context) {
	if err := r.hub.Subscribe(c.Writer, c.Request); err != nil {
		logger.Logger().Error("failed to upgrade event subscriber", zap.Error(err))
	}
}
