package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/models"
)

// SubscriberRepository persists subscribers. Create must return
// models.ErrDuplicateEmail when the email is already stored and fill in
// CreatedAt on success.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *models.Subscriber) error
	List(ctx context.Context, limit, offset int) ([]*models.Subscriber, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) (time.Time, error)
}

type InMemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers []*models.Subscriber
	emails      map[string]struct{}
	now         func() time.Time
	tracer      trace.Tracer
}

func NewInMemorySubscriberRepository() *InMemorySubscriberRepository {
	return &InMemorySubscriberRepository{
		emails: make(map[string]struct{}),
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("subscriber-repository"),
	}
}

func (r *InMemorySubscriberRepository) Create(ctx context.Context, subscriber *models.Subscriber) error {
	_, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("subscriber.email", subscriber.Email),
			attribute.String("operation", "database.write"),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emails[subscriber.Email]; exists {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return models.ErrDuplicateEmail
	}

	subscriber.CreatedAt = r.now()
	stored := *subscriber
	r.subscribers = append(r.subscribers, &stored)
	r.emails[subscriber.Email] = struct{}{}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (r *InMemorySubscriberRepository) List(ctx context.Context, limit, offset int) ([]*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.list",
		trace.WithAttributes(
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	// newest insert first; the stable sort keeps that order for equal timestamps
	r.mu.RLock()
	ordered := make([]*models.Subscriber, 0, len(r.subscribers))
	for i := len(r.subscribers) - 1; i >= 0; i-- {
		ordered = append(ordered, r.subscribers[i])
	}
	r.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	if offset >= len(ordered) {
		return []*models.Subscriber{}, nil
	}
	end := offset + limit
	if end > len(ordered) {
		end = len(ordered)
	}

	page := make([]*models.Subscriber, 0, end-offset)
	for _, s := range ordered[offset:end] {
		c := *s
		page = append(page, &c)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(page)),
		attribute.Bool("success", true),
	)
	return page, nil
}

func (r *InMemorySubscriberRepository) Count(ctx context.Context) (int64, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.count",
		trace.WithAttributes(attribute.String("operation", "database.read")))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.subscribers)), nil
}

func (r *InMemorySubscriberRepository) Ping(ctx context.Context) (time.Time, error) {
	return r.now(), nil
}
