package storage_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"

	"github.com/snapkeep/snapkeep/internal/storage"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: operation timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func respErr(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{
			Response: &http.Response{StatusCode: status},
		},
		Err: fmt.Errorf("http response error"),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want storage.Kind
	}{
		{"wrapped sentinel", fmt.Errorf("get: %w", storage.ErrNotFound), storage.KindNotFound},
		{"no such key type", &types.NoSuchKey{}, storage.KindNotFound},
		{"not found type", &types.NotFound{}, storage.KindNotFound},
		{"no such bucket code", &smithy.GenericAPIError{Code: "NoSuchBucket"}, storage.KindNotFound},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, storage.KindTransient},
		{"throttling", &smithy.GenericAPIError{Code: "Throttling"}, storage.KindTransient},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, storage.KindTransient},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, storage.KindPermanent},
		{"bad signature", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, storage.KindPermanent},
		{"unknown code", &smithy.GenericAPIError{Code: "SomethingNew"}, storage.KindPermanent},
		{"http 404", respErr(404), storage.KindNotFound},
		{"http 503", respErr(503), storage.KindTransient},
		{"http 403", respErr(403), storage.KindPermanent},
		{"net timeout", timeoutErr{}, storage.KindTransient},
		{"attempt deadline", fmt.Errorf("put: %w", context.DeadlineExceeded), storage.KindTransient},
		{"connection reset", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), storage.KindTransient},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9000: connection refused"), storage.KindTransient},
		{"unknown plain error", errors.New("something unexpected"), storage.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storage.Classify(tt.err))
		})
	}
}

func TestClassifyWrappedErrors(t *testing.T) {
	err := fmt.Errorf("upload key: %w", &smithy.GenericAPIError{Code: "SlowDown"})
	assert.Equal(t, storage.KindTransient, storage.Classify(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, storage.IsRetryable(nil))
	assert.False(t, storage.IsRetryable(context.Canceled))
	assert.True(t, storage.IsRetryable(fmt.Errorf("op: %w", context.DeadlineExceeded)))
	assert.False(t, storage.IsRetryable(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, storage.IsRetryable(fmt.Errorf("get: %w", storage.ErrNotFound)))
	assert.True(t, storage.IsRetryable(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.True(t, storage.IsRetryable(respErr(502)))
}
