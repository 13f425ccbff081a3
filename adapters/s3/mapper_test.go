package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"

	"github.com/chyke007/boltfs"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", context.DeadlineExceeded, boltfs.ErrTimeout},
		{"no such key", &types.NoSuchKey{}, boltfs.ErrNotFound},
		{"not found", &types.NotFound{}, boltfs.ErrNotFound},
		{"no such bucket", &types.NoSuchBucket{}, boltfs.ErrNotFound},
		{"connection refused", fmt.Errorf("dial tcp 127.0.0.1:9000: connection refused"), boltfs.ErrConnection},
		{"deserialization", &smithy.DeserializationError{Err: fmt.Errorf("bad xml")}, boltfs.ErrProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err, "op", "/p")
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestMapErrorPreservesUnknown(t *testing.T) {
	cause := errors.New("something else entirely")
	got := mapError(cause, "op", "/p")

	var storageErr *boltfs.StorageError
	assert.ErrorAs(t, got, &storageErr)
	assert.ErrorIs(t, got, cause)
}

func TestMapConnectError(t *testing.T) {
	conn := mapConnectError(fmt.Errorf("dial tcp: connection refused"))
	assert.ErrorIs(t, conn, boltfs.ErrConnection)

	proto := mapConnectError(&smithy.DeserializationError{Err: fmt.Errorf("truncated frame")})
	assert.ErrorIs(t, proto, boltfs.ErrProtocol)

	assert.NoError(t, mapConnectError(nil))
}
