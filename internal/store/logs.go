package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const paymentLogsSchema = `
CREATE TABLE IF NOT EXISTS payment_logs (
	id         BIGSERIAL PRIMARY KEY,
	provider   TEXT NOT NULL,
	order_id   TEXT NOT NULL DEFAULT '',
	log_type   TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS payment_logs_order_idx ON payment_logs (provider, order_id);
`

// LogsRepository appends provider traffic (request, response, webhook,
// error) to payment_logs.
type LogsRepository struct{ q Querier }

func NewLogsRepository(q Querier) *LogsRepository {
	return &LogsRepository{q: q}
}

// EnsureSchema creates payment_logs when it does not exist yet.
func (r *LogsRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()
	if _, err := r.q.Exec(ctx, paymentLogsSchema); err != nil {
		return fmt.Errorf("create payment_logs: %w", err)
	}
	return nil
}

func (r *LogsRepository) InsertPaymentLog(ctx context.Context, provider, orderID, logType string, payload any) error {
	var jb []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			jb = b
		}
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_logs (provider, order_id, log_type, payload)
		VALUES ($1, $2, $3, $4)
	`, provider, orderID, logType, jb)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}
