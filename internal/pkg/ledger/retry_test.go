package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

var fastRetry = RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestWithRetryRecoversFromDeadlock(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry, "test", func() error {
		attempts++
		if attempts < 3 {
			return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetrySurfacesContended(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry, "test", func() error {
		attempts++
		return &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	})
	assert.ErrorIs(t, err, ErrContended)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry, "test", func() error {
		attempts++
		return ErrInsufficientCredit
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit)
	assert.False(t, errors.Is(err, ErrContended))
	assert.Equal(t, 1, attempts)
}
