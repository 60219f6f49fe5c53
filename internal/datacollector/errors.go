package datacollector

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingWorkspaceID = errors.New("workspace id is required")
	ErrMissingSharedKey   = errors.New("shared key is required")
	ErrInvalidSharedKey   = errors.New("shared key is not valid base64")
)

const maxErrorBody = 512

// SerializationError is returned when the records cannot be encoded as JSON.
// No request is sent in that case.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize records: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure from the underlying HTTP layer unchanged.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("data collector request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IngestionError reports a non-2xx response from the Data Collector API.
type IngestionError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *IngestionError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody] + "..."
	}
	if e.Code != "" {
		return fmt.Sprintf("data collector returned status %d (%s): %s", e.StatusCode, e.Code, detail)
	}
	return fmt.Sprintf("data collector returned status %d: %s", e.StatusCode, detail)
}

type apiErrorBody struct {
	Error   string `json:"Error"`
	Message string `json:"Message"`
}

func newIngestionError(statusCode int, body []byte) *IngestionError {
	ierr := &IngestionError{
		StatusCode: statusCode,
		Body:       string(body),
	}

	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil {
		ierr.Code = apiErr.Error
		ierr.Message = apiErr.Message
	}

	return ierr
}

// IsStatus reports whether err is an IngestionError with the given status code.
func IsStatus(err error, statusCode int) bool {
	var ierr *IngestionError
	return errors.As(err, &ierr) && ierr.StatusCode == statusCode
}
