package sink

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"

	"github.com/minio/minio-go"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

type objectPutter interface {
	PutObjectWithContext(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (int64, error)
}

// S3Sink uploads each report as <prefix>/<started-at>.json to an
// S3-compatible bucket, creating the bucket if needed.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

func NewS3Sink(ctx context.Context, u *url.URL) (*S3Sink, error) {
	user, pw, err := credentials(u)
	if err != nil {
		return nil, err
	}

	bucketName := u.Query().Get("bucket")
	if bucketName == "" {
		return nil, werr.ErrConfig.WithCauseErrMsg("missing bucket")
	}

	client, err := minio.New(u.Host, user, pw, u.Scheme == "https")
	if err != nil {
		return nil, werr.ErrSink.WithCauseErr(err)
	}

	bucketExists, err := client.BucketExists(bucketName)
	if err != nil {
		return nil, werr.ErrSink.WithCauseErr(err)
	}

	if !bucketExists {
		if err := client.MakeBucket(bucketName, ""); err != nil {
			return nil, werr.ErrSink.WithCauseErr(err)
		}
	}

	return &S3Sink{
		client: client,
		bucket: bucketName,
		prefix: queryOr(u, "prefix", defaultPrefix),
	}, nil
}

func (s *S3Sink) objectName(r *report.Report) string {
	return path.Join(s.prefix, runKey(r)+".json")
}

func (s *S3Sink) Publish(ctx context.Context, r *report.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}

	if _, err := s.client.PutObjectWithContext(
		ctx,
		s.bucket,
		s.objectName(r),
		bytes.NewReader(b),
		int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"},
	); err != nil {
		return werr.ErrSink.WithCauseErr(err)
	}

	return nil
}

func (s *S3Sink) Close() error {
	return nil
}
