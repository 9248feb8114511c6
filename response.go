package inspirehub

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// APIError is returned for every non-2xx response.
// It matches [ErrStatus], and [ErrUnauthorized] for 401s.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %d", http.StatusText(e.StatusCode), e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is lets callers test the error against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrStatus:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// newAPIError reads the response body and extracts the backend message.
// The body is consumed but not closed.
func newAPIError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	if resp.Body == nil {
		return e
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return e
	}
	e.Body = body
	e.Message = errorMessage(body)

	return e
}

// errorMessage picks the human readable part of an error body. The
// backend answers with {"message": ...}, {"error": ...} or plain text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "message", "error", "error.message")
		for _, r := range res {
			if r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
		return ""
	}

	return strings.TrimSpace(string(body))
}

// PageParams represents pagination parameters for API requests.
type PageParams struct {
	Offset int `url:"offset"`
	Limit  int `url:"limit,omitempty"`
}
