package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/services/storage/aws_client"
)

type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

func NewStorageService(client aws_client.S3Client, bucketName string) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key, "size", len(data))

	if key == "" {
		return errors.New("storage key is empty")
	}

	err := s.client.Upload(ctx, s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "upload %s", key)
	}
	return nil
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key)

	content, err := s.client.Download(ctx, s.bucketName, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "download %s", key)
	}

	return content, nil
}
