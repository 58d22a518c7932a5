package resolve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/geoknoesis/csvw-go/errs"
)

// S3Config holds the connection settings for an S3 compatible store.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// NewS3Client creates a client for s3:// URLs. It does not contact the
// server.
func NewS3Client(cfg S3Config) (*miniogo.Client, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindResolution, "creating s3 client", err)
	}
	return client, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, *Entry, error) {
	if f.s3 == nil {
		return nil, nil, errs.Newf(errs.KindResolution, "%s: no s3 client configured", u)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, nil, errs.Newf(errs.KindResolution, "%s: s3 URLs need a bucket and a key", u)
	}
	obj, err := f.s3.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, nil, mapS3Error(err, "getting "+u.String())
	}
	// GetObject is lazy; Stat surfaces missing objects and bad credentials.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, mapS3Error(err, "getting "+u.String())
	}
	return obj, &Entry{URL: u.String(), ContentType: stat.ContentType}, nil
}

// mapS3Error turns an S3 error into a resolution error with a readable
// message.
func mapS3Error(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindResolution, msg+": timed out", err)
	}
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.Code == "NoSuchBucket":
			return errs.Wrap(errs.KindResolution, msg+": bucket not found", err)
		case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
			return errs.Wrap(errs.KindResolution, msg+": object not found", err)
		case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
			return errs.Wrap(errs.KindResolution, msg+": access denied", err)
		}
	}
	return errs.Wrap(errs.KindResolution, msg, err)
}
