package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/logging"
	"newsletter-go/internal/models"
	"newsletter-go/internal/service"
)

type SubscriberHandler struct {
	service *service.SubscriberService
	logger  *logging.ContextLogger
	tracer  trace.Tracer
}

func NewSubscriberHandler(service *service.SubscriberService, logger *logging.ContextLogger) *SubscriberHandler {
	useJSONFieldNames()
	return &SubscriberHandler{
		service: service,
		logger:  logger,
		tracer:  otel.Tracer("subscriber-handler"),
	}
}

// Subscribe handles POST /api/v1/subscribe.
func (h *SubscriberHandler) Subscribe(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.subscribe")
	defer span.End()

	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr, tooLarge := bindingError(err)
		span.SetAttributes(attribute.String("error.type", "validation_error"))
		if tooLarge {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "request body too large"})
			return
		}
		h.logger.InfoWithTracing(ctx, "Invalid subscribe payload", logrus.Fields{
			"endpoint": "POST /api/v1/subscribe",
			"error":    err.Error(),
		})
		respondValidation(c, verr)
		return
	}

	result, err := h.service.Subscribe(ctx, &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondValidation(c, verr)
			return
		}
		h.logger.ErrorWithTracing(ctx, "Subscribe failed", err, logrus.Fields{
			"endpoint": "POST /api/v1/subscribe",
		})
		span.RecordError(err)
		respondStoreError(c)
		return
	}

	if !result.Created {
		span.SetAttributes(attribute.Bool("subscriber.duplicate", true))
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "already subscribed"})
		return
	}

	span.SetAttributes(
		attribute.String("subscriber.id", result.Subscriber.ID.String()),
		attribute.Bool("success", true),
	)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "subscriber": result.Subscriber})
}

// ListSubscribers handles GET /api/v1/subscribers?limit=&offset=.
func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.list")
	defer span.End()

	q, verr := parseListQuery(c)
	if verr != nil {
		span.SetAttributes(attribute.String("error.type", "validation_error"))
		respondValidation(c, verr)
		return
	}

	items, err := h.service.ListSubscribers(ctx, q)
	if err != nil {
		if errors.As(err, &verr) {
			respondValidation(c, verr)
			return
		}
		h.logger.ErrorWithTracing(ctx, "List subscribers failed", err, logrus.Fields{
			"endpoint": "GET /api/v1/subscribers",
		})
		span.RecordError(err)
		respondStoreError(c)
		return
	}

	span.SetAttributes(attribute.Int("subscriber.count", len(items)))
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"items":  items,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// CountSubscribers handles GET /api/v1/subscribers/count.
func (h *SubscriberHandler) CountSubscribers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.count")
	defer span.End()

	count, err := h.service.CountSubscribers(ctx)
	if err != nil {
		h.logger.ErrorWithTracing(ctx, "Count subscribers failed", err, logrus.Fields{
			"endpoint": "GET /api/v1/subscribers/count",
		})
		span.RecordError(err)
		respondStoreError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}

func parseListQuery(c *gin.Context) (models.ListQuery, *models.ValidationError) {
	q := models.DefaultListQuery()
	verr := &models.ValidationError{}

	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("limit", "integer", "limit must be an integer")
		} else {
			q.Limit = n
		}
	}
	if raw, ok := c.GetQuery("offset"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("offset", "integer", "offset must be an integer")
		} else {
			q.Offset = n
		}
	}

	if verr.HasErrors() {
		return q, verr
	}
	return q, nil
}
