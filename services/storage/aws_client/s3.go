package aws_client

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/violationstack/internal/tracing"
)

type S3Client interface {
	Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

type s3Client struct {
	Uploader   *s3manager.Uploader
	Downloader *s3manager.Downloader
}

func NewS3Client(config *aws.Config) S3Client {
	s := session.Must(session.NewSession(config))
	return &s3Client{
		Uploader:   s3manager.NewUploader(s),
		Downloader: s3manager.NewDownloader(s),
	}
}

func (s *s3Client) Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	_, err := s.Uploader.UploadWithContext(ctx, &uploadContainer)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *s3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	buffer := &aws.WriteAtBuffer{}
	_, err := s.Downloader.DownloadWithContext(ctx, buffer,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return buffer.Bytes(), nil
}
