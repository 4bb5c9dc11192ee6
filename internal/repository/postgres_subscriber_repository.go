package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/models"
)

const (
	uniqueViolation       = "23505"
	emailUniqueConstraint = "subscribers_email_key"
)

const (
	insertSubscriberSQL = `INSERT INTO subscribers (id, email) VALUES ($1, $2)
ON CONFLICT (email) DO NOTHING
RETURNING created_at`
	listSubscribersSQL = `SELECT id, email, created_at FROM subscribers
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	countSubscribersSQL = `SELECT COUNT(*) FROM subscribers`
	pingSQL             = `SELECT NOW()`
)

// PostgresSubscriberRepository stores subscribers in the subscribers table.
// Every statement runs under queryTimeout.
type PostgresSubscriberRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
	tracer       trace.Tracer
}

func NewPostgresSubscriberRepository(db *sql.DB, queryTimeout time.Duration) *PostgresSubscriberRepository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &PostgresSubscriberRepository{
		db:           db,
		queryTimeout: queryTimeout,
		tracer:       otel.Tracer("postgres.repository"),
	}
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, subscriber *models.Subscriber) error {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("subscriber.email", subscriber.Email),
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, insertSubscriberSQL, subscriber.ID, subscriber.Email).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows), isDuplicateEmail(err):
		span.SetAttributes(attribute.Bool("duplicate", true))
		return models.ErrDuplicateEmail
	case err != nil:
		recordError(span, err)
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}

	subscriber.CreatedAt = createdAt.UTC()
	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (r *PostgresSubscriberRepository) List(ctx context.Context, limit, offset int) ([]*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.list",
		trace.WithAttributes(
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, listSubscribersSQL, limit, offset)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*models.Subscriber, 0, limit)
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.CreatedAt); err != nil {
			recordError(span, err)
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		subscribers = append(subscribers, &s)
	}
	if err := rows.Err(); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *PostgresSubscriberRepository) Count(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.count",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var count int64
	if err := r.db.QueryRowContext(ctx, countSubscribersSQL).Scan(&count); err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	span.SetAttributes(attribute.Int64("subscriber.count", count))
	return count, nil
}

func (r *PostgresSubscriberRepository) Ping(ctx context.Context) (time.Time, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.ping",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var now time.Time
	if err := r.db.QueryRowContext(ctx, pingSQL).Scan(&now); err != nil {
		recordError(span, err)
		return time.Time{}, fmt.Errorf("failed to ping database: %w", err)
	}
	return now, nil
}

// isDuplicateEmail matches a unique violation on the email constraint only;
// a primary key collision is a store failure, not a repeat subscription.
func isDuplicateEmail(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailUniqueConstraint
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
