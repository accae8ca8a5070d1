package storage

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/services/storage/aws_client"
)

const RawMessageContentType = "message/rfc822"

// RawMessageKey is the archive location of an inbound message.
func RawMessageKey(tenantID, inboundID string) string {
	return fmt.Sprintf("inbound/%s/%s.eml", tenantID, inboundID)
}

// NewR2StorageService creates a StorageService configured for Cloudflare R2
func NewR2StorageService(accountID, accessKeyID, accessKeySecret, bucketName string) interfaces.StorageService {
	r2Client := aws_client.NewS3Client(&aws.Config{
		Endpoint:         aws.String("https://" + accountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})

	return NewStorageService(r2Client, bucketName)
}

// NewRawMessageStorage returns nil when no R2 account is configured.
func NewRawMessageStorage(cfg *config.R2StorageConfig) interfaces.StorageService {
	if cfg == nil || cfg.AccountID == "" {
		return nil
	}
	return NewR2StorageService(cfg.AccountID, cfg.AccessKeyID, cfg.AccessKeySecret, cfg.RawMessageBucket)
}
