package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/logging"
	"newsletter-go/internal/models"
	"newsletter-go/internal/service"
)

type BuildInfo struct {
	ServiceName string
	Version     string
	SHA         string
}

type SystemHandler struct {
	service *service.SubscriberService
	build   BuildInfo
	logger  *logging.ContextLogger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewSystemHandler(service *service.SubscriberService, build BuildInfo, logger *logging.ContextLogger) *SystemHandler {
	return &SystemHandler{
		service: service,
		build:   build,
		logger:  logger,
		tracer:  otel.Tracer("system-handler"),
		now:     time.Now,
	}
}

// Health never touches the store.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"time":    h.now().UTC().Format(time.RFC3339Nano),
		"version": h.build.Version,
		"sha":     h.build.SHA,
	})
}

// DBPing reports the store's clock or, on failure, the underlying cause.
func (h *SystemHandler) DBPing(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "system.handler.db_ping")
	defer span.End()

	now, err := h.service.PingStore(ctx)
	if err != nil {
		h.logger.ErrorWithTracing(ctx, "DB ping failed", err, logrus.Fields{
			"endpoint": c.Request.Method + " " + c.FullPath(),
		})
		span.RecordError(err)
		msg := err.Error()
		var serr *models.StoreError
		if errors.As(err, &serr) {
			msg = serr.Err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "now": now})
}

func (h *SystemHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, h.build.ServiceName+" is running")
}
