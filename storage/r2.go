package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/princinho/postboard/config"
)

// R2Store talks to Cloudflare R2, or any S3 compatible endpoint.
type R2Store struct {
	S3     *s3.Client
	Bucket string
	domain string
}

func NewR2Store(ctx context.Context, cfg config.StorageConfig) (*R2Store, error) {
	if cfg.R2Bucket == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretKey == "" || cfg.R2Endpoint == "" {
		return nil, fmt.Errorf("missing R2 env vars (R2_BUCKET, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_ENDPOINT)")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true // required for R2
	})

	return &R2Store{
		S3:     client,
		Bucket: cfg.R2Bucket,
		domain: strings.TrimRight(cfg.R2PublicDomain, "/"),
	}, nil
}

func (r *R2Store) Put(ctx context.Context, obj Object) (string, error) {
	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	in := &s3.PutObjectInput{
		Bucket:       aws.String(r.Bucket),
		Key:          aws.String(obj.Key),
		Body:         obj.Body,
		ContentType:  aws.String(ct),
		CacheControl: aws.String("no-cache"),
	}
	if obj.Size >= 0 {
		in.ContentLength = aws.Int64(obj.Size)
	}
	if _, err := r.S3.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s: %w", obj.Key, err)
	}
	return r.publicURL(obj.Key), nil
}

func (r *R2Store) Delete(ctx context.Context, key string) error {
	_, err := r.S3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// publicURL is served from R2_PUBLIC_DOMAIN, a custom domain or the r2.dev URL.
func (r *R2Store) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", r.domain, r.Bucket, key)
}
