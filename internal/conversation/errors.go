package conversation

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"google.golang.org/api/googleapi"
)

// FailureCategory buckets completion failures so each gets its own canned apology.
type FailureCategory string

const (
	FailureConnectivity FailureCategory = "connectivity"
	FailureAuth         FailureCategory = "auth"
	FailureRateLimit    FailureCategory = "rate_limit"
	FailureTimeout      FailureCategory = "timeout"
	FailureAPI          FailureCategory = "api"
	FailureUnavailable  FailureCategory = "unavailable"
)

// ErrEmptyCompletion is returned when a backend answers with no usable text.
var ErrEmptyCompletion = errors.New("conversation: completion was empty")

// ClassifyCompletionError maps a completion error to its failure category.
func ClassifyCompletionError(err error) FailureCategory {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			return FailureRateLimit
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException":
			return FailureAuth
		}
	}

	if status := httpStatus(err); status != 0 {
		switch {
		case status == http.StatusTooManyRequests:
			return FailureRateLimit
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return FailureAuth
		case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
			return FailureTimeout
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureConnectivity
	}
	return FailureAPI
}

func httpStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return 0
}
