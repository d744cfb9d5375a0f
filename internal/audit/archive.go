package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver records raw verification payloads for later audit. The purchase
// table keeps latest state only, so the archive is the only place historical
// payloads survive an upsert.
type Archiver interface {
	ArchiveRawPayload(ctx context.Context, purchaseToken string, payload []byte) error
}

// S3Archiver writes one object per verification to S3-compatible storage.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver creates an archiver writing to the given bucket.
func NewS3Archiver(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// ArchiveRawPayload stores the payload under purchases/<token>/<unix-nano>.json.
// The nanosecond key keeps concurrent verifications of the same token from
// overwriting each other.
func (a *S3Archiver) ArchiveRawPayload(ctx context.Context, purchaseToken string, payload []byte) error {
	key := fmt.Sprintf("purchases/%s/%d.json", purchaseToken, time.Now().UnixNano())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive payload for token %s: %w", purchaseToken, err)
	}
	return nil
}
