package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDeleteBatch is the S3 DeleteObjects limit per request.
const maxDeleteBatch = 1000

// s3API is the slice of the SDK client the store uses directly. Kept
// narrow so unit tests can substitute a mock.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloadAPI interface {
	Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Options configure an S3Store. Profile selects a shared-config profile;
// AccessKey/SecretKey override the credential chain; Endpoint switches to
// path-style addressing for MinIO-compatible stores.
type Options struct {
	Bucket    string
	Profile   string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store implements Store over the AWS SDK, using the transfer manager
// for multipart-capable uploads and downloads.
type S3Store struct {
	api        s3API
	uploader   uploadAPI
	downloader downloadAPI
	bucket     string
	batchSize  int
}

func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	if opts.Endpoint != "" && !strings.Contains(opts.Endpoint, "://") {
		opts.Endpoint = "http://" + opts.Endpoint
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		api:        client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     opts.Bucket,
		batchSize:  maxDeleteBatch,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", destPath, err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) ListPage(ctx context.Context, in ListPageInput) (*ListPageOutput, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(in.Prefix),
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		input.ContinuationToken = aws.String(in.ContinuationToken)
	}

	resp, err := s.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", in.Prefix, err)
	}

	out := &ListPageOutput{}
	for _, obj := range resp.Contents {
		info := ObjectInfo{Key: aws.ToString(obj.Key)}
		if obj.Size != nil {
			info.Size = *obj.Size
		}
		out.Keys = append(out.Keys, info)
	}
	for _, cp := range resp.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	if aws.ToBool(resp.IsTruncated) {
		out.NextToken = aws.ToString(resp.NextContinuationToken)
	}
	return out, nil
}

// DeleteBatch deletes keys in chunks of the store's batch limit and
// aggregates per-key outcomes across all chunks.
func (s *S3Store) DeleteBatch(ctx context.Context, keys []string) ([]DeleteOutcome, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	batch := s.batchSize
	if batch <= 0 || batch > maxDeleteBatch {
		batch = maxDeleteBatch
	}

	outcomes := make([]DeleteOutcome, 0, len(keys))
	for start := 0; start < len(keys); start += batch {
		end := start + batch
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		objects := make([]types.ObjectIdentifier, len(chunk))
		for i, k := range chunk {
			objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}

		resp, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return outcomes, fmt.Errorf("delete batch: %w", err)
		}

		failed := make(map[string]error, len(resp.Errors))
		for _, e := range resp.Errors {
			failed[aws.ToString(e.Key)] = fmt.Errorf("%s: %s",
				aws.ToString(e.Code), aws.ToString(e.Message))
		}
		for _, k := range chunk {
			outcomes = append(outcomes, DeleteOutcome{Key: k, Err: failed[k]})
		}
	}
	return outcomes, nil
}
