package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	apperrors "csstcli/internal/errors"
)

const defaultRegion = "us-east-1"

// S3 stores objects in one bucket of an S3 compatible service
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Store = (*S3)(nil)

// NewS3 builds a client from the default AWS chain. Static credentials and a
// custom endpoint (MinIO, localstack) are applied when set.
func NewS3(ctx context.Context, cfg Config, optFns ...func(*s3.Options)) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.NewConfigError("s3 archive requires a bucket", nil)
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, apperrors.NewConfigError("load aws configuration", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Driver implements Store
func (s *S3) Driver() Driver { return DriverS3 }

func (s *S3) objectKey(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return clean, nil
	}
	return path.Join(s.prefix, clean), nil
}

func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// Put checks for an existing object first, S3 has no portable create-only put
func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string, metadata map[string]string) (Info, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return Info{}, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &objectKey})
	switch {
	case err == nil:
		return Info{}, fmt.Errorf("%s: %w", key, ErrExists)
	case !isNotFound(err):
		return Info{}, apperrors.NewStorageError("head archive object", err).WithContext("key", objectKey)
	}

	// a seekable body lets the SDK sign the payload
	body, err := io.ReadAll(r)
	if err != nil {
		return Info{}, apperrors.NewStorageError("read archive payload", err)
	}
	input := &s3.PutObjectInput{
		Bucket:   &s.bucket,
		Key:      &objectKey,
		Body:     bytes.NewReader(body),
		Metadata: cloneMetadata(metadata),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return Info{}, apperrors.NewStorageError("put archive object", err).WithContext("key", objectKey)
	}
	return Info{
		Key:         key,
		Size:        int64(len(body)),
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:    cloneMetadata(metadata),
	}, nil
}

// Get streams an archived object
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objectKey})
	if isNotFound(err) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("archive object %q", key))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get archive object", err).WithContext("key", objectKey)
	}
	return out.Body, nil
}

// List pages through ListObjectsV2 and returns keys relative to the prefix
func (s *S3) List(ctx context.Context, prefix string) ([]Info, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}
	var (
		infos []Info
		token *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &full,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, apperrors.NewStorageError("list archive", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			infos = append(infos, Info{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
