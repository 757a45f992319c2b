// Package storage writes rendered documents to S3 and issues pre-signed download links.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	u "resumepdf/internal/utils"
)

// ContentTypePDF is the content type of every rendered document.
const ContentTypePDF = "application/pdf"

// S3Store implements object writes and link signing on a single bucket.
type S3Store struct {
	bucket    string
	client    *s3.Client
	presigner *s3.PresignClient
}

// NewS3Store builds a store on top of awsCfg. Static credentials from cfg take
// precedence over the credentials already present in awsCfg.
func NewS3Store(awsCfg aws.Config, cfg u.Config, opts ...func(*s3.Options)) (*S3Store, error) {
	if cfg.Storage.Bucket == "" {
		return nil, errors.New("storage bucket is empty")
	}

	st := cfg.Storage
	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if st.Region != "" {
				o.Region = st.Region
			}
			if st.AccessKeyID != "" && st.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(st.AccessKeyID, st.SecretAccessKey, "")
			}
			if st.Endpoint != "" {
				o.BaseEndpoint = aws.String(st.Endpoint)
				o.UsePathStyle = true
			}
			if st.UsePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	s3Opts = append(s3Opts, opts...)

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Store{
		bucket:    st.Bucket,
		client:    client,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// Put writes body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a GET link for key that expires after ttl.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// NewObjectKey returns a fresh random object key.
func NewObjectKey() string {
	return uuid.NewString()
}
