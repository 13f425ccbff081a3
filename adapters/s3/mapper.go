package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/chyke007/boltfs"
)

// mapError converts SDK errors to domain errors
func mapError(err error, op, path string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &boltfs.StorageError{Op: op, Path: path, Err: boltfs.ErrTimeout}
	}
	if errors.Is(err, context.Canceled) {
		return &boltfs.StorageError{Op: op, Path: path, Err: err}
	}

	switch err.(type) {
	case *types.NoSuchKey, *types.NotFound:
		return &boltfs.StorageError{Op: op, Path: path, Err: boltfs.ErrNotFound}

	case *types.NoSuchBucket:
		return &boltfs.StorageError{Op: op, Path: path, Err: fmt.Errorf("%w: bucket does not exist", boltfs.ErrNotFound)}
	}

	if isProtocolError(err) {
		return &boltfs.StorageError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", boltfs.ErrProtocol, err)}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 404:
			return &boltfs.StorageError{Op: op, Path: path, Err: boltfs.ErrNotFound}
		case code >= 500:
			return &boltfs.StorageError{Op: op, Path: path, Err: fmt.Errorf("%w: remote returned %d", boltfs.ErrConnection, code)}
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return &boltfs.StorageError{Op: op, Path: path, Err: boltfs.ErrNotFound}
		case "RequestTimeout", "SlowDown", "ServiceUnavailable":
			return &boltfs.StorageError{Op: op, Path: path, Err: fmt.Errorf("%w: %s", boltfs.ErrConnection, apiErr.ErrorCode())}
		}
	}

	if isNetworkError(err) {
		return &boltfs.StorageError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", boltfs.ErrConnection, err)}
	}

	return &boltfs.StorageError{Op: op, Path: path, Err: err}
}

// mapConnectError classifies a session-establishment failure. Protocol
// violations keep their class; everything else that prevented a
// session counts as a connection failure.
func mapConnectError(err error) error {
	if err == nil {
		return nil
	}

	if isProtocolError(err) {
		return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: %v", boltfs.ErrProtocol, err)}
	}
	if errors.Is(err, boltfs.ErrProtocol) {
		return &boltfs.StorageError{Op: "connect", Err: err}
	}
	return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: %v", boltfs.ErrConnection, err)}
}

// isProtocolError reports whether the remote response itself was
// malformed, as opposed to unreachable.
func isProtocolError(err error) bool {
	var deserErr *smithy.DeserializationError
	if errors.As(err, &deserErr) {
		return true
	}
	var serErr *smithy.SerializationError
	if errors.As(err, &serErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deserialization failed") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "malformed")
}

// isNetworkError reports whether the failure happened below the
// protocol layer.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "tls handshake")
}
