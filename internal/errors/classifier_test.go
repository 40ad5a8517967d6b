package errors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	ec := NewErrorClassifier(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	tests := []struct {
		name   string
		err    error
		class  ErrorClass
		status int
	}{
		{"not found", fmt.Errorf("get x: %w", ErrNotFound), ClassNotFound, http.StatusNotFound},
		{"invalid input", fmt.Errorf("%w: empty id", ErrInvalidInput), ClassValidation, http.StatusBadRequest},
		{"invalid record", ErrInvalidRecord, ClassValidation, http.StatusBadRequest},
		{"transient", fmt.Errorf("acquire: %w", ErrTransient), ClassTransient, http.StatusServiceUnavailable},
		{"fatal", fmt.Errorf("%w: no such table", ErrFatal), ClassFatal, http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, ClassCanceled, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("boom"), ClassInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sanitized := ec.Sanitize(context.Background(), tt.err, "test", "id-1")
			require.NotNil(t, sanitized)
			assert.Equal(t, tt.class, sanitized.Class)
			assert.Equal(t, tt.status, sanitized.Status)
			assert.NotContains(t, sanitized.Message, tt.err.Error())
		})
	}
}

func TestLogAndSanitize_LogsInternalError(t *testing.T) {
	var buf bytes.Buffer
	ec := NewErrorClassifier(slog.New(slog.NewTextHandler(&buf, nil)))

	ec.Sanitize(context.Background(), fmt.Errorf("%w: disk image is malformed", ErrFatal), "Read", "abc")

	assert.Contains(t, buf.String(), "disk image is malformed")
	assert.Contains(t, buf.String(), "record_id=abc")
	assert.Contains(t, buf.String(), "error_class=fatal")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("x: %w", ErrTransient)))
	assert.False(t, IsTransient(ErrFatal))
	assert.False(t, IsTransient(nil))
}
