package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Transient failure classes for external AI/vector calls. Both are
// retried with back-off by the ingestion pipeline; everything else is
// retried too, but these carry the rate-limit semantics in logs.
var (
	ErrRateLimited = errors.New("rate limited by upstream service")
	ErrTimeout     = errors.New("upstream service timed out")
)

// Classify wraps err with one of the sentinel transient errors when the
// upstream response indicates rate limiting or a timeout. Other errors
// are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return errors.Join(ErrTimeout, err)
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return errors.Join(ErrRateLimited, err)
		case codes.DeadlineExceeded:
			return errors.Join(ErrTimeout, err)
		}
	}

	// Some SDK paths flatten the response into the message text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") {
		return errors.Join(ErrRateLimited, err)
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return errors.Join(ErrTimeout, err)
	}

	return err
}

// IsTransient reports whether err was classified as rate-limit or timeout.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
