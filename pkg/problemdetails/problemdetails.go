package problemdetails

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// ContentType is the media type of RFC 7807 documents.
const ContentType = "application/problem+json"

const (
	TypeValidationError    = "validation-error"
	TypeConflict           = "short-code-conflict"
	TypeNotFound           = "not-found"
	TypeRateLimitExceeded  = "rate-limit-exceeded"
	TypeQuotaExceeded      = "quota-exceeded"
	TypePermissionDenied   = "permission-denied"
	TypeUnauthenticated    = "unauthenticated"
	TypeServiceUnavailable = "service-unavailable"
	TypeInternalError      = "internal-error"
	TypeInvalidRequest     = "invalid-request"
	typeBaseURL            = "https://shortlinks.dev/problems/"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ProblemDetail struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail"`
	Instance string       `json:"instance,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   typeURL(problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

func NewValidation(errors []FieldError) *ProblemDetail {
	return &ProblemDetail{
		Type:   typeURL(TypeValidationError),
		Title:  "Validation Failed",
		Status: 400,
		Detail: "Request validation failed",
		Errors: errors,
	}
}

// FieldErrorsFrom turns a field -> message map into a stable, sorted list.
func FieldErrorsFrom(fields map[string]string) []FieldError {
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(fields))
	for field, msg := range fields {
		out = append(out, FieldError{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func typeURL(problemType string) string {
	return fmt.Sprintf("%s%s", typeBaseURL, problemType)
}

// Write sends the problem with its status code.
func Write(w http.ResponseWriter, problem *ProblemDetail) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}
