package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chyke007/boltfs"
)

const (
	// multipartThreshold is the body size at which WriteFile switches
	// to a multipart upload.
	multipartThreshold = 8 << 20

	// multipartPartSize is the S3 minimum part size
	multipartPartSize = 5 << 20

	// multipartConcurrency bounds parallel part uploads per file
	multipartConcurrency = 4
)

// writeMultipart uploads content in parts and assembles them into one
// object. A failure on any part aborts the upload so no orphaned parts
// accumulate in the bucket.
func (a *Adapter) writeMultipart(ctx context.Context, session *Session, p string, content []byte) error {
	key := session.keyFor(p)

	create, err := session.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(http.DetectContentType(content)),
	})
	if err != nil {
		return mapError(err, "write_file", p)
	}
	uploadID := aws.ToString(create.UploadId)

	a.logger.Debug("Starting multipart upload", boltfs.ArgsToFields(
		"path", p,
		"upload_id", uploadID,
		"size", len(content),
	)...)

	completed, err := a.uploadParts(ctx, session, p, key, uploadID, content)
	if err != nil {
		if _, abortErr := session.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
			Bucket:   aws.String(a.cfg.Bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
		}); abortErr != nil {
			a.logger.Warn("Failed to abort multipart upload", boltfs.ArgsToFields(
				"path", p,
				"upload_id", uploadID,
				"error", abortErr,
			)...)
		}
		return err
	}

	_, err = session.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:          aws.String(a.cfg.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return mapError(err, "write_file", p)
	}

	a.logger.Debug("Multipart upload completed", boltfs.ArgsToFields(
		"path", p,
		"upload_id", uploadID,
		"parts", len(completed),
	)...)
	return nil
}

// uploadParts pushes fixed-size chunks with bounded concurrency and
// returns the completed parts ordered by part number.
func (a *Adapter) uploadParts(ctx context.Context, session *Session, p, key, uploadID string, content []byte) ([]types.CompletedPart, error) {
	partCount := (len(content) + multipartPartSize - 1) / multipartPartSize
	completed := make([]types.CompletedPart, partCount)
	errs := make(chan error, partCount)

	sem := make(chan struct{}, multipartConcurrency)
	var wg sync.WaitGroup
	for i := 0; i < partCount; i++ {
		start := i * multipartPartSize
		end := start + multipartPartSize
		if end > len(content) {
			end = len(content)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(partNumber int32, chunk []byte) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := session.client.UploadPart(ctx, &awss3.UploadPartInput{
				Bucket:     aws.String(a.cfg.Bucket),
				Key:        aws.String(key),
				UploadId:   aws.String(uploadID),
				PartNumber: aws.Int32(partNumber),
				Body:       bytes.NewReader(chunk),
			})
			if err != nil {
				errs <- fmt.Errorf("part %d: %w", partNumber, err)
				return
			}
			completed[partNumber-1] = types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			}
		}(int32(i+1), content[start:end])
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, mapError(err, "write_file", p)
	}
	return completed, nil
}
