package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"schoolmail/pkg/circuitbreaker"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	badJSON := json.Unmarshal([]byte("{not json"), &struct{}{})

	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantType      string
	}{
		{"nil", nil, false, ""},
		{"json syntax", badJSON, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "row_not_found"},
		{"wrapped no rows", fmt.Errorf("lookup: %w", pgx.ErrNoRows), false, "row_not_found"},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "emails_gmail_id_key"`), false, "duplicate_key"},
		{"db connection", errors.New("failed to connect: connection refused"), true, "db_connection_error"},
		{"circuit open", circuitbreaker.ErrCircuitBreakerOpen, true, "circuit_open"},
		{"wrapped circuit open", fmt.Errorf("classify: %w", circuitbreaker.ErrCircuitBreakerOpen), true, "circuit_open"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"oracle 5xx", errors.New("oracle returned 5xx: 503"), true, "oracle_unavailable"},
		{"oracle call failure", fmt.Errorf("failed to call oracle: %w", errors.New("eof")), true, "oracle_unavailable"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.wantRetryable, retryable)
			assert.Equal(t, tt.wantType, errType)
		})
	}
}
