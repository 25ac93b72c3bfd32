package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/content"
)

type fakeDrive struct {
	data []byte
	err  error
}

func (f *fakeDrive) ListFolder(ctx context.Context, folderID string, all bool, pageToken string) ([]content.DriveItem, string, error) {
	return nil, "", nil
}

func (f *fakeDrive) Fetch(ctx context.Context, fileID, mimeType string, rich bool) ([]byte, error) {
	return f.data, f.err
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func stubAWS(t *testing.T, put func(in *s3.PutObjectInput) error, location types.BucketLocationConstraint) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	origLoc := getBucketLocation
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
		getBucketLocation = origLoc
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		if err := put(in); err != nil {
			return nil, err
		}
		return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
	}
	getBucketLocation = func(c *s3.Client, ctx context.Context, in *s3.GetBucketLocationInput) (*s3.GetBucketLocationOutput, error) {
		return &s3.GetBucketLocationOutput{LocationConstraint: location}, nil
	}
}

func testImage() *content.ImageFile {
	return &content.ImageFile{
		DriveFile: content.DriveFile{
			Code:     content.CodeImage,
			DriveID:  "img-1",
			Title:    "cover.jpg",
			MimeType: "image/jpeg",
		},
	}
}

func TestSnapshotImage_Success(t *testing.T) {
	var uploaded *s3.PutObjectInput
	stubAWS(t, func(in *s3.PutObjectInput) error {
		uploaded = in
		return nil
	}, types.BucketLocationConstraintUsWest1)

	svc := NewService(&fakeDrive{data: testJPEG(t)}, Options{Bucket: "media", Region: "us-west-1"})

	item, err := svc.SnapshotImage(context.Background(), testImage())
	require.NoError(t, err)
	require.Equal(t, "media", item.Bucket)
	require.Equal(t, "us-west-1", item.Region)
	require.True(t, strings.HasSuffix(item.Key, ".jpg"), "key %q must carry the mime extension", item.Key)
	require.Equal(t, `"etag-1"`, item.Meta["etag"])

	require.NotNil(t, uploaded)
	require.Equal(t, "image/jpeg", *uploaded.ContentType)
}

func TestSnapshotImage_DownloadFailureIsNotFound(t *testing.T) {
	svc := NewService(&fakeDrive{err: errors.New("403")}, Options{Bucket: "media"})

	_, err := svc.SnapshotImage(context.Background(), testImage())
	require.ErrorIs(t, err, common.ErrorImageNotFound)
}

func TestSnapshotImage_GarbageBytesFailRecompression(t *testing.T) {
	svc := NewService(&fakeDrive{data: []byte("not an image")}, Options{Bucket: "media"})

	_, err := svc.SnapshotImage(context.Background(), testImage())
	require.Error(t, err)
	require.Contains(t, err.Error(), "recompress")
}

func TestSnapshotImage_UploadFailure(t *testing.T) {
	stubAWS(t, func(in *s3.PutObjectInput) error {
		return errors.New("access denied")
	}, "")

	svc := NewService(&fakeDrive{data: testJPEG(t)}, Options{Bucket: "media"})

	_, err := svc.SnapshotImage(context.Background(), testImage())
	require.Error(t, err)
	require.Equal(t, common.KindUpstream, common.KindOf(err))
}

func TestSnapshot_StoresCoordinatesAndLink(t *testing.T) {
	stubAWS(t, func(in *s3.PutObjectInput) error { return nil }, "")

	origPresign := presignGetObject
	t.Cleanup(func() { presignGetObject = origPresign })
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *in.Key}, nil
	}

	svc := NewService(&fakeDrive{data: testJPEG(t)}, Options{Bucket: "media"})
	img := testImage()

	require.NoError(t, svc.Snapshot(context.Background(), img))
	require.True(t, img.Stored())
	require.Equal(t, "media", img.S3Bucket)
	require.Equal(t, "us-east-1", img.S3Region)
	require.Contains(t, img.SrcLarge, "https://signed.example/")
}

func TestPublicLink_DefaultTTL(t *testing.T) {
	stubAWS(t, func(in *s3.PutObjectInput) error { return nil }, "")

	origPresign := presignGetObject
	t.Cleanup(func() { presignGetObject = origPresign })
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/x"}, nil
	}

	svc := NewService(&fakeDrive{}, Options{Bucket: "media"})
	url, err := svc.PublicLink(context.Background(), "media", "k.jpg", 0)
	require.NoError(t, err)
	require.Equal(t, "https://signed.example/x", url)
}

func TestPublicLink_ConfiguredTTL(t *testing.T) {
	stubAWS(t, func(in *s3.PutObjectInput) error { return nil }, "")

	var expires time.Duration
	origPresign := presignGetObject
	t.Cleanup(func() { presignGetObject = origPresign })
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		opts := &s3.PresignOptions{}
		for _, fn := range optFns {
			fn(opts)
		}
		expires = opts.Expires
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/x"}, nil
	}

	svc := NewService(&fakeDrive{}, Options{Bucket: "media", LinkTTL: 15 * time.Minute})
	_, err := svc.PublicLink(context.Background(), "media", "k.jpg", 0)
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, expires)
}
