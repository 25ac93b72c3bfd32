// Package media implements the image snapshot pipeline: download from
// the source drive, recompress, upload to durable object storage, and
// presign time-limited public links.
package media

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
	"github.com/editorial-eng/packsync/internal/server/drive"
)

// DefaultQuality is the JPEG recompression quality.
const DefaultQuality = 95

// DefaultLinkTTL is the lifetime of presigned public links.
const DefaultLinkTTL = 3600 * time.Second

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	getBucketLocation = func(c *s3.Client, ctx context.Context, in *s3.GetBucketLocationInput) (*s3.GetBucketLocationOutput, error) {
		return c.GetBucketLocation(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Item is the durable-storage coordinates of a snapshotted image.
type S3Item struct {
	Key    string         `json:"key"`
	Bucket string         `json:"bucket"`
	Region string         `json:"region"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Options configure the pipeline's storage backend. Zero Quality and
// LinkTTL fall back to the package defaults.
type Options struct {
	AccessKey    string
	SecretKey    string
	Region       string
	Bucket       string
	BaseEndpoint string
	Quality      int
	LinkTTL      time.Duration
}

// Service runs the pipeline. It implements content.LinkSigner.
type Service struct {
	drive   drive.Client
	options Options
}

func NewService(dc drive.Client, opts Options) *Service {
	if opts.Quality == 0 {
		opts.Quality = DefaultQuality
	}
	if opts.LinkTTL == 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	return &Service{drive: dc, options: opts}
}

func (s *Service) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.options.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.options.AccessKey,
			s.options.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.options.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.options.BaseEndpoint)
		}
	}), nil
}

// SnapshotImage downloads the image, recompresses it, and uploads it
// under a fresh unique key, returning the storage coordinates. A
// failed download surfaces as a not-found condition; recompression and
// upload failures propagate, and the temp file is left behind on
// failure for the caller to clean up.
func (s *Service) SnapshotImage(ctx context.Context, img *content.ImageFile) (*S3Item, error) {
	data, err := s.drive.Fetch(ctx, img.DriveID, img.MimeType, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrorImageNotFound, img.Title)
	}

	f, err := os.CreateTemp("", "packsync-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := s.compressImage(path); err != nil {
		return nil, fmt.Errorf("recompress %s: %w", img.Title, err)
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recompressed image: %w", err)
	}

	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	key := uuid.New().String() + extForMime(img.MimeType)
	out, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.options.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(compressed),
		ContentType: aws.String(img.MimeType),
	})
	if err != nil {
		return nil, common.OperationFailed(err, "")
	}

	region, err := s.bucketRegion(ctx, client)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if out != nil && out.ETag != nil {
		meta["etag"] = *out.ETag
	}
	os.Remove(path)

	return &S3Item{Key: key, Bucket: s.options.Bucket, Region: region, Meta: meta}, nil
}

// Snapshot runs SnapshotImage and stores the resulting coordinates and
// a fresh public link onto the snapshot itself.
func (s *Service) Snapshot(ctx context.Context, img *content.ImageFile) error {
	item, err := s.SnapshotImage(ctx, img)
	if err != nil {
		return err
	}
	img.S3Key = item.Key
	img.S3Bucket = item.Bucket
	img.S3Region = item.Region
	return img.RefreshLink(ctx, s, s.options.LinkTTL)
}

// PublicLink produces a time-limited signed URL for a stored object.
func (s *Service) PublicLink(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.options.LinkTTL
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// compressImage re-encodes the file in place. Output is currently
// fixed to JPEG.
func (s *Service) compressImage(path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}
	return imaging.Save(img, path, imaging.JPEGQuality(s.options.Quality))
}

func (s *Service) bucketRegion(ctx context.Context, client *s3.Client) (string, error) {
	out, err := getBucketLocation(client, ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(s.options.Bucket),
	})
	if err != nil {
		return "", common.OperationFailed(err, "")
	}
	// An empty location constraint means us-east-1.
	if out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(out.LocationConstraint), nil
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

func extForMime(mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
