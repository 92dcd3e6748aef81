package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velaluna/storefront-api/internal/domain/checkout"
)

const (
	createSubmissionSQL = `INSERT INTO checkout_submissions
	(request_id, session_id, payment_method, shipping_cost, total, status)
	VALUES ($1, $2, $3, $4, $5, $6)`

	setSubmissionOrderSQL = `UPDATE checkout_submissions
	SET order_id = $2, status = $3, updated_at = now()
	WHERE request_id = $1`

	setSubmissionStatusSQL = `UPDATE checkout_submissions
	SET status = $2, init_point = NULLIF($3, ''), updated_at = now()
	WHERE request_id = $1`
)

var _ checkout.SubmissionLog = (*SubmissionLog)(nil)

// SubmissionLog implements checkout.SubmissionLog backed by PostgreSQL.
// One row per submission attempt chain, keyed by the client-generated
// request id.
type SubmissionLog struct {
	pool *pgxpool.Pool
}

// NewSubmissionLog returns a SubmissionLog that uses the given pool.
func NewSubmissionLog(pool *pgxpool.Pool) *SubmissionLog {
	return &SubmissionLog{pool: pool}
}

// Create records a new pending submission.
func (l *SubmissionLog) Create(ctx context.Context, sub *checkout.Submission) error {
	_, err := l.pool.Exec(ctx, createSubmissionSQL,
		sub.RequestID, sub.SessionID, sub.PaymentMethod,
		sub.ShippingCost, sub.Total, string(sub.Status),
	)
	if err != nil {
		return fmt.Errorf("creating submission %q: %w", sub.RequestID, err)
	}
	return nil
}

// SetOrder records the backend-assigned order id for a submission.
func (l *SubmissionLog) SetOrder(ctx context.Context, requestID string, orderID int64) error {
	_, err := l.pool.Exec(ctx, setSubmissionOrderSQL,
		requestID, orderID, string(checkout.SubmissionOrderCreated),
	)
	if err != nil {
		return fmt.Errorf("recording order for submission %q: %w", requestID, err)
	}
	return nil
}

// SetStatus updates the submission's terminal status and, when present, the
// payment redirect URL.
func (l *SubmissionLog) SetStatus(ctx context.Context, requestID string, status checkout.SubmissionStatus, initPoint string) error {
	_, err := l.pool.Exec(ctx, setSubmissionStatusSQL, requestID, string(status), initPoint)
	if err != nil {
		return fmt.Errorf("updating submission %q: %w", requestID, err)
	}
	return nil
}
