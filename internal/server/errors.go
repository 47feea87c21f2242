package server

import (
	nethttp "net/http"
	"strings"

	"go-shortlinks/internal/domain"
	"go-shortlinks/pkg/problemdetails"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// codecReason is the reason kratos uses when a request body or query fails to decode.
const codecReason = "CODEC"

var problemTypes = map[string]string{
	domain.ReasonValidation:       problemdetails.TypeValidationError,
	domain.ReasonConflict:         problemdetails.TypeConflict,
	domain.ReasonNotFound:         problemdetails.TypeNotFound,
	domain.ReasonRateLimited:      problemdetails.TypeRateLimitExceeded,
	domain.ReasonQuotaExceeded:    problemdetails.TypeQuotaExceeded,
	domain.ReasonPermissionDenied: problemdetails.TypePermissionDenied,
	domain.ReasonUnauthenticated:  problemdetails.TypeUnauthenticated,
	codecReason:                   problemdetails.TypeInvalidRequest,
}

// NewErrorEncoder renders every error as an RFC 7807 document. Server errors
// are logged with their cause, which never reaches the client.
func NewErrorEncoder(logger log.Logger) http.EncodeErrorFunc {
	helper := log.NewHelper(logger)
	return func(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
		se := errors.FromError(err)
		if se.Code >= 500 {
			helper.WithContext(r.Context()).Errorw(
				"msg", "request failed",
				"path", r.URL.Path,
				"reason", se.Reason,
				"error", err,
			)
		}
		writeProblem(w, r, se)
	}
}

func writeProblem(w nethttp.ResponseWriter, r *nethttp.Request, se *errors.Error) {
	status := int(se.Code)
	if nethttp.StatusText(status) == "" {
		status = nethttp.StatusInternalServerError
	}
	problem := toProblem(status, se)
	problem.Instance = r.URL.Path

	switch status {
	case nethttp.StatusTooManyRequests:
		if secs := se.Metadata[domain.MetadataRetryAfter]; secs != "" {
			w.Header().Set("Retry-After", secs)
		}
	case nethttp.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="shortlinks"`)
	}
	problemdetails.Write(w, problem)
}

func toProblem(status int, se *errors.Error) *problemdetails.ProblemDetail {
	if se.Reason == domain.ReasonValidation {
		p := problemdetails.NewValidation(problemdetails.FieldErrorsFrom(fieldMessages(se.Metadata)))
		p.Detail = se.Message
		p.Reason = se.Reason
		return p
	}

	typ, ok := problemTypes[se.Reason]
	detail := se.Message
	switch {
	case status == nethttp.StatusServiceUnavailable:
		typ = problemdetails.TypeServiceUnavailable
	case status >= 500:
		typ = problemdetails.TypeInternalError
		if se.Reason == errors.UnknownReason {
			detail = "internal server error"
		}
	case !ok:
		typ = problemdetails.TypeInvalidRequest
	}

	p := problemdetails.New(status, typ, nethttp.StatusText(status), detail)
	p.Reason = se.Reason
	return p
}

func fieldMessages(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if field, ok := strings.CutPrefix(k, domain.MetadataFieldPrefix); ok {
			out[field] = v
		}
	}
	return out
}
