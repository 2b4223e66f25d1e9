package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransient reports whether err is worth retrying: connectivity problems,
// timeouts and rate limiting. Auth failures, bad requests and cancellations
// are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return true
		default:
			return false
		}
	}

	// langchaingo's OpenAI client only reports the HTTP status in the message.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "connection reset") {
		return true
	}
	if i := strings.Index(msg, "status code: "); i >= 0 {
		code := msg[i+len("status code: "):]
		if len(code) >= 3 {
			return code[:3] == "429" || code[0] == '5'
		}
	}
	return false
}

func transientStatus(code int) bool {
	return code == 429 || (code >= 500 && code <= 599)
}
