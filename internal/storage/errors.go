package storage

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Kind classifies a store error for retry and reporting decisions.
type Kind int

const (
	// KindTransient covers network trouble, timeouts and 5xx responses.
	// Worth retrying with backoff.
	KindTransient Kind = iota
	// KindPermanent covers auth and other 4xx failures. Retrying cannot
	// help; surface immediately.
	KindPermanent
	// KindNotFound means the object (or bucket) does not exist.
	KindNotFound
)

// ErrNotFound marks a missing remote object.
var ErrNotFound = errors.New("object not found")

// Error codes the store returns for failures that a retry cannot fix.
var permanentCodes = map[string]struct{}{
	"AccessDenied":                 {},
	"InvalidAccessKeyId":           {},
	"SignatureDoesNotMatch":        {},
	"InvalidBucketName":            {},
	"ExpiredToken":                 {},
	"MethodNotAllowed":             {},
	"MalformedXML":                 {},
	"InvalidRequest":               {},
	"AuthorizationHeaderMalformed": {},
}

// Error codes that indicate load or server-side trouble and clear up on
// their own.
var transientCodes = map[string]struct{}{
	"SlowDown":             {},
	"RequestTimeout":       {},
	"InternalError":        {},
	"ServiceUnavailable":   {},
	"Throttling":           {},
	"ThrottlingException":  {},
	"RequestLimitExceeded": {},
}

var notFoundCodes = map[string]struct{}{
	"NoSuchKey":    {},
	"NoSuchBucket": {},
	"NotFound":     {},
}

// Classify maps an error from the store into a Kind. Unknown errors are
// treated as permanent: never burn retries on something we cannot name.
func Classify(err error) Kind {
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return KindNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := notFoundCodes[code]; ok {
			return KindNotFound
		}
		if _, ok := transientCodes[code]; ok {
			return KindTransient
		}
		if _, ok := permanentCodes[code]; ok {
			return KindPermanent
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 404:
			return KindNotFound
		case status >= 500:
			return KindTransient
		case status >= 400:
			return KindPermanent
		}
	}

	// A per-attempt timeout is worth another try; whether the deadline
	// was the caller's own is decided by the retry loop, not here.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	// Raw connection failures come through as plain errors with no code.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return KindTransient
		}
	}

	return KindPermanent
}

// IsRetryable reports whether a retry with backoff can reasonably succeed.
// Cancellation is never retried; an expired deadline is, because a
// per-request timeout looks identical to the caller's own deadline and the
// retry loop tells them apart by the caller's context.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return Classify(err) == KindTransient
}
