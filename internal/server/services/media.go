package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	sc "artfolio/internal/server/config"
	"artfolio/internal/server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// MediaService resolves short-lived presigned GET URLs for photo assets. The
// image pipeline writes processed variants next to the original object; this
// service only derives their keys and signs requests.
type MediaService struct {
	config *sc.Config
}

func NewMediaService(config *sc.Config) *MediaService {
	return &MediaService{config: config}
}

// variantStorageKey derives the object key of a processed variant from the
// original key: "photos/ab/cd.jpg" becomes "photos/ab/cd_large.jpg". The
// original variant keeps the key untouched.
func variantStorageKey(storageKey string, variant models.DownloadVariant) string {
	if variant == models.VariantOriginal {
		return storageKey
	}
	ext := path.Ext(storageKey)
	base := strings.TrimSuffix(storageKey, ext)
	return fmt.Sprintf("%s_%s%s", base, variant, ext)
}

func (s *MediaService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// DownloadURL returns a presigned GET URL for the requested variant of the
// stored asset. Unknown variants fall back to the original object.
func (s *MediaService) DownloadURL(ctx context.Context, storageKey string, variant models.DownloadVariant) (string, error) {
	if !models.ValidVariant(variant) {
		variant = models.VariantOriginal
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := variantStorageKey(storageKey, variant)

	ttl := s.config.DownloadURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	// Presigned GET
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
