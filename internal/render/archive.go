package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// Archiver stores rendered PDFs and returns their location
type Archiver interface {
	Archive(ctx context.Context, name string, pdf []byte) (string, error)
}

// NopArchive keeps nothing
type NopArchive struct{}

func (NopArchive) Archive(context.Context, string, []byte) (string, error) { return "", nil }

// S3Archive uploads PDFs to invoices/<name> in a bucket
type S3Archive struct {
	bucket   string
	uploader s3manageriface.UploaderAPI
}

// NewS3Archive uses the default AWS credential chain
func NewS3Archive(bucket, region string) (*S3Archive, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return NewS3ArchiveWithUploader(bucket, s3manager.NewUploader(sess)), nil
}

func NewS3ArchiveWithUploader(bucket string, uploader s3manageriface.UploaderAPI) *S3Archive {
	return &S3Archive{bucket: bucket, uploader: uploader}
}

func (a *S3Archive) Archive(ctx context.Context, name string, pdf []byte) (string, error) {
	key := "invoices/" + name
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return out.Location, nil
}
