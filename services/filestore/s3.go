package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps files in an S3 (or S3 compatible) bucket.
type S3Store struct {
	client  s3API
	bucket  string
	prefix  string
	baseURL string
}

var _ core.FileStore = (*S3Store)(nil)

// NewS3Store loads the AWS credentials from the environment. A custom endpoint switches to path-style addressing.
func NewS3Store(ctx context.Context, conf core.StorageConfig) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.S3Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := conf.PublicBaseURL
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		if conf.S3Endpoint != "" {
			baseURL = strings.TrimSuffix(conf.S3Endpoint, "/") + "/" + conf.S3Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", conf.S3Bucket, conf.S3Region)
		}
	}
	return newS3Store(client, conf.S3Bucket, conf.S3Prefix, baseURL), nil
}

func newS3Store(client s3API, bucket, prefix, baseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *S3Store) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	// uploads are bounded by the request body limit; buffering gives the SDK a seekable body
	content, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}

	objKey := s.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
		Body:   bytes.NewReader(content),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err = s.client.PutObject(ctx, input); err != nil {
		return "", errors.Wrapf(err, "uploading %s", objKey)
	}
	return s.baseURL + "/" + objKey, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	objKey, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || objKey == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return errors.Wrapf(err, "deleting %s", objKey)
	}
	return nil
}
