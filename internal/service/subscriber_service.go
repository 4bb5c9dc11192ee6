package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcnijman/go-emailaddress"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/logging"
	"newsletter-go/internal/models"
	"newsletter-go/internal/repository"
)

type SubscriberService struct {
	repo   repository.SubscriberRepository
	logger *logging.ContextLogger
	tracer trace.Tracer
}

func NewSubscriberService(repo repository.SubscriberRepository, logger *logging.ContextLogger) *SubscriberService {
	return &SubscriberService{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("subscriber-service"),
	}
}

// Subscribe validates the address and inserts it once. A repeat address is
// reported as Created=false with a nil error; any other store failure comes
// back as *models.StoreError.
func (s *SubscriberService) Subscribe(ctx context.Context, req *models.SubscribeRequest) (*models.SubscribeResult, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.subscribe")
	defer span.End()

	email, verr := ValidateEmail(req.Email)
	if verr != nil {
		span.SetAttributes(attribute.String("error.type", "validation_error"))
		s.logger.DebugWithTracing(ctx, "Rejected invalid subscription request", logrus.Fields{
			"email_length": len(req.Email),
			"rule":         verr.Fields[0].Rule,
		})
		return nil, verr
	}
	span.SetAttributes(attribute.String("subscriber.email", email))

	subscriber := models.NewSubscriber(email)
	err := s.repo.Create(ctx, subscriber)
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		s.logger.InfoWithTracing(ctx, "Email already subscribed", logrus.Fields{
			"email": email,
		})
		span.SetAttributes(
			attribute.Bool("subscriber.duplicate", true),
			attribute.Bool("success", true),
		)
		return &models.SubscribeResult{Created: false}, nil
	case err != nil:
		s.logger.ErrorWithTracing(ctx, "Failed to create subscriber", err, logrus.Fields{
			"subscriber_id": subscriber.ID.String(),
			"email":         email,
		})
		span.RecordError(err)
		return nil, &models.StoreError{Op: "create subscriber", Err: err}
	}

	s.logger.InfoWithTracing(ctx, "Successfully created subscriber", logrus.Fields{
		"subscriber_id": subscriber.ID.String(),
		"email":         subscriber.Email,
	})
	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)

	return &models.SubscribeResult{Subscriber: subscriber, Created: true}, nil
}

func (s *SubscriberService) ListSubscribers(ctx context.Context, q models.ListQuery) ([]*models.Subscriber, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.list",
		trace.WithAttributes(
			attribute.Int("limit", q.Limit),
			attribute.Int("offset", q.Offset),
		))
	defer span.End()

	if verr := ValidateListQuery(q); verr != nil {
		span.SetAttributes(attribute.String("error.type", "validation_error"))
		return nil, verr
	}

	subscribers, err := s.repo.List(ctx, q.Limit, q.Offset)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Failed to list subscribers", err, logrus.Fields{
			"limit":  q.Limit,
			"offset": q.Offset,
		})
		span.RecordError(err)
		return nil, &models.StoreError{Op: "list subscribers", Err: err}
	}

	s.logger.DebugWithTracing(ctx, "Listed subscribers", logrus.Fields{
		"count":  len(subscribers),
		"limit":  q.Limit,
		"offset": q.Offset,
	})
	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (s *SubscriberService) CountSubscribers(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.count")
	defer span.End()

	count, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Failed to count subscribers", err, nil)
		span.RecordError(err)
		return 0, &models.StoreError{Op: "count subscribers", Err: err}
	}

	span.SetAttributes(attribute.Int64("subscriber.count", count))
	return count, nil
}

// PingStore runs a round trip against the store and returns its clock.
func (s *SubscriberService) PingStore(ctx context.Context) (time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.ping")
	defer span.End()

	now, err := s.repo.Ping(ctx)
	if err != nil {
		s.logger.ErrorWithTracing(ctx, "Database ping failed", err, nil)
		span.RecordError(err)
		return time.Time{}, &models.StoreError{Op: "ping", Err: err}
	}
	return now, nil
}

// ValidateEmail trims the input and checks it is a single well-formed
// address. Case is preserved; uniqueness is exact-match.
func ValidateEmail(raw string) (string, *models.ValidationError) {
	email := strings.TrimSpace(raw)
	verr := &models.ValidationError{}

	switch {
	case email == "":
		verr.Add("email", "required", "email is required")
	case utf8.RuneCountInString(email) > models.MaxEmailLength:
		verr.Add("email", "max", "email must be at most 254 characters")
	default:
		if _, err := emailaddress.Parse(email); err != nil {
			verr.Add("email", "email", "email must be a valid email address")
		}
	}

	if verr.HasErrors() {
		return "", verr
	}
	return email, nil
}

func ValidateListQuery(q models.ListQuery) *models.ValidationError {
	verr := &models.ValidationError{}
	if q.Limit < 1 || q.Limit > models.MaxListLimit {
		verr.Add("limit", "range", "limit must be between 1 and 100")
	}
	if q.Offset < 0 {
		verr.Add("offset", "min", "offset must be greater than or equal to 0")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
