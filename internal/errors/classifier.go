package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassNotFound
	ClassTransient
	ClassFatal
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	case ClassCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

type ClassifiedError struct {
	Class         ErrorClass
	InternalError error
	ClientMessage string
	OperationName string
	RecordID      string
}

// SanitizedError is what leaves the process: a status and a message without internals.
type SanitizedError struct {
	Status  int
	Class   ErrorClass
	Message string
}

func (e *SanitizedError) Error() string {
	return e.Message
}

var errorPool = sync.Pool{
	New: func() interface{} {
		return &ClassifiedError{}
	},
}

func (ce *ClassifiedError) release() {
	ce.Class = ClassInternal
	ce.InternalError = nil
	ce.ClientMessage = ""
	ce.OperationName = ""
	ce.RecordID = ""
	errorPool.Put(ce)
}

type ErrorClassifier struct {
	logger *slog.Logger
}

func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	return &ErrorClassifier{logger: logger}
}

func (ec *ErrorClassifier) Classify(err error, operation string) *ClassifiedError {
	classified := errorPool.Get().(*ClassifiedError)
	classified.InternalError = err
	classified.OperationName = operation

	switch {
	case errors.Is(err, ErrNotFound):
		classified.Class = ClassNotFound
		classified.ClientMessage = "The requested record was not found."
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRecord):
		classified.Class = ClassValidation
		classified.ClientMessage = "The request contains invalid parameters."
	case errors.Is(err, ErrTransient):
		classified.Class = ClassTransient
		classified.ClientMessage = "The store is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrFatal):
		classified.Class = ClassFatal
		classified.ClientMessage = "An internal storage error occurred."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		classified.Class = ClassCanceled
		classified.ClientMessage = "The request was canceled or timed out."
	default:
		classified.Class = ClassInternal
		classified.ClientMessage = "An unexpected internal error occurred."
	}

	return classified
}

// LogAndSanitize logs the classified error and converts it to a client-safe error.
// Expected negative outcomes (not found, validation) are logged at debug level.
func (ec *ErrorClassifier) LogAndSanitize(ctx context.Context, classified *ClassifiedError) *SanitizedError {
	defer classified.release()

	level := slog.LevelError
	if classified.Class == ClassNotFound || classified.Class == ClassValidation {
		level = slog.LevelDebug
	}

	ec.logger.Log(ctx, level, "operation failed",
		"operation", classified.OperationName,
		"error_class", classified.Class.String(),
		"internal_error", classified.InternalError.Error(),
		"record_id", classified.RecordID,
	)

	return &SanitizedError{
		Status:  httpStatus(classified.Class),
		Class:   classified.Class,
		Message: classified.ClientMessage,
	}
}

// Sanitize is Classify followed by LogAndSanitize.
func (ec *ErrorClassifier) Sanitize(ctx context.Context, err error, operation, recordID string) *SanitizedError {
	classified := ec.Classify(err, operation)
	classified.RecordID = recordID
	return ec.LogAndSanitize(ctx, classified)
}

func httpStatus(class ErrorClass) int {
	switch class {
	case ClassNotFound:
		return http.StatusNotFound
	case ClassValidation:
		return http.StatusBadRequest
	case ClassTransient:
		return http.StatusServiceUnavailable
	case ClassCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
