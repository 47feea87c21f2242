package domain

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
)

const (
	ReasonValidation          = "VALIDATION_FAILED"
	ReasonConflict            = "SHORT_CODE_CONFLICT"
	ReasonNotFound            = "LINK_NOT_FOUND"
	ReasonRateLimited         = "RATE_LIMITED"
	ReasonQuotaExceeded       = "QUOTA_EXCEEDED"
	ReasonStorage             = "STORAGE_ERROR"
	ReasonPartialWrite        = "PARTIAL_WRITE_INCONSISTENCY"
	ReasonAllocationExhausted = "ALLOCATION_EXHAUSTED"
	ReasonPermissionDenied    = "PERMISSION_DENIED"
	ReasonUnauthenticated     = "UNAUTHENTICATED"

	// MetadataRetryAfter holds the seconds until a rate limit window resets.
	MetadataRetryAfter = "retry_after"
	// MetadataFieldPrefix prefixes per-field validation messages.
	MetadataFieldPrefix = "field."
)

var (
	ErrValidation          = errors.BadRequest(ReasonValidation, "validation failed")
	ErrConflict            = errors.Conflict(ReasonConflict, "short code is already taken")
	ErrLinkNotFound        = errors.NotFound(ReasonNotFound, "link not found")
	ErrRateLimited         = errors.New(http.StatusTooManyRequests, ReasonRateLimited, "rate limit exceeded")
	ErrQuotaExceeded       = errors.Forbidden(ReasonQuotaExceeded, "monthly link quota reached")
	ErrStorage             = errors.InternalServer(ReasonStorage, "storage operation failed")
	ErrPartialWrite        = errors.InternalServer(ReasonPartialWrite, "link saved but redirect mapping was not written")
	ErrAllocationExhausted = errors.InternalServer(ReasonAllocationExhausted, "could not allocate a free short code")
	ErrPermissionDenied    = errors.Forbidden(ReasonPermissionDenied, "permission denied")
	ErrUnauthenticated     = errors.Unauthorized(ReasonUnauthenticated, "authentication required")
)

// ErrDuplicateShortCode is returned by the relational store when the unique
// short code constraint rejects an insert.
var ErrDuplicateShortCode = fmt.Errorf("duplicate short code")

// ValidationError builds a 400 error whose metadata names the offending field.
func ValidationError(field, format string, args ...any) *errors.Error {
	if field == "" {
		field = "request"
	}
	msg := fmt.Sprintf(format, args...)
	return errors.BadRequest(ReasonValidation, msg).WithMetadata(map[string]string{
		MetadataFieldPrefix + field: msg,
	})
}

// FieldErrors builds a 400 error from a field -> message map.
func FieldErrors(fields map[string]string) *errors.Error {
	md := make(map[string]string, len(fields))
	for k, v := range fields {
		md[MetadataFieldPrefix+k] = v
	}
	return errors.BadRequest(ReasonValidation, "request validation failed").WithMetadata(md)
}

// StorageError wraps a failing store call.
func StorageError(op string, cause error) *errors.Error {
	return errors.InternalServer(ReasonStorage, op+" failed").WithCause(cause)
}

// PartialWriteError reports a relational commit whose key-value write failed.
func PartialWriteError(linkID string, cause error) *errors.Error {
	return ErrPartialWrite.WithCause(cause).WithMetadata(map[string]string{"link_id": linkID})
}

// RateLimitedError carries the seconds until the window resets.
func RateLimitedError(retryAfter time.Duration) *errors.Error {
	secs := int64(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return ErrRateLimited.WithMetadata(map[string]string{
		MetadataRetryAfter: strconv.FormatInt(secs, 10),
	})
}
