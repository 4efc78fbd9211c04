package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func TestRetrierDo(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{"first try succeeds", nil, 1, nil},
		{"succeeds after one transient failure", []error{errTransient}, 2, nil},
		{"gives up after max retries", []error{errTransient, errTransient, errTransient, errTransient}, 3, errTransient},
		{"does not retry fatal errors", []error{errFatal}, 1, errFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := test.NewNullLogger()
			r := New(Config{
				MaxRetries: 2,
				BaseDelay:  time.Millisecond,
				Multiplier: 2,
				Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
			}, log)

			calls := 0
			err := r.Do(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetrierStopsOnContextDone(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := New(Config{MaxRetries: 5, BaseDelay: time.Hour, Multiplier: 2}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDelayIsCapped(t *testing.T) {
	r := New(Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond, Multiplier: 2}, nil)

	assert.Equal(t, 100*time.Millisecond, r.delay(0))
	assert.Equal(t, 200*time.Millisecond, r.delay(1))
	assert.Equal(t, 250*time.Millisecond, r.delay(5))
}
