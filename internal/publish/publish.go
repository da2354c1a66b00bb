// Package publish uploads a build result tree to S3-compatible storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
	"github.com/specialistvlad/anda/internal/ctxlog"
)

// Environment variables holding static credentials. When unset the default
// AWS credential chain is used.
const (
	EnvAccessKeyID     = "ANDA_S3_ACCESS_KEY_ID"
	EnvSecretAccessKey = "ANDA_S3_SECRET_ACCESS_KEY"
)

// DefaultRegion is used when neither the flags nor the AWS configuration
// name a region.
const DefaultRegion = "us-east-1"

// ErrNoBucket is returned when no bucket was given.
var ErrNoBucket = errors.New("no bucket specified")

// Uploader is the subset of the S3 API used by Publisher.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options select the destination of an upload.
type Options struct {
	Bucket   string
	Endpoint string
	Prefix   string
	Region   string
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// NewClient builds an S3 client for opts. A custom endpoint switches to
// path-style addressing, which most S3-compatible servers expect.
func NewClient(ctx context.Context, opts Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	id, secret := os.Getenv(EnvAccessKeyID), os.Getenv(EnvSecretAccessKey)
	if id != "" && secret != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Publisher uploads directory trees.
type Publisher struct {
	client Uploader
	opts   Options
}

// New returns a Publisher writing through client.
func New(client Uploader, opts Options) *Publisher {
	return &Publisher{client: client, opts: opts}
}

type upload struct {
	path string
	key  string
	size int64
}

// Publish uploads every regular file below dir and returns the object keys
// in upload order. Keys are the slash-separated relative paths, joined to
// the configured prefix.
func (p *Publisher) Publish(ctx context.Context, dir string) ([]string, error) {
	if p.opts.Bucket == "" {
		return nil, ErrNoBucket
	}
	logger := ctxlog.FromContext(ctx)

	files, total, err := p.collect(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("Nothing to publish.", "dir", dir)
		return nil, nil
	}

	var bar *progressbar.ProgressBar
	if p.opts.Progress != nil {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(p.opts.Progress),
			progressbar.OptionSetDescription("Publishing"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if err := p.put(ctx, f, bar); err != nil {
			return keys, fmt.Errorf("failed to upload %s: %w", f.path, err)
		}
		logger.Debug("Uploaded object.", "bucket", p.opts.Bucket, "key", f.key)
		keys = append(keys, f.key)
	}
	logger.Info("Published build results.", "bucket", p.opts.Bucket, "objects", len(keys))
	return keys, nil
}

func (p *Publisher) collect(dir string) ([]upload, int64, error) {
	var (
		files []upload
		total int64
	)
	err := filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		files = append(files, upload{
			path: name,
			key:  objectKey(p.opts.Prefix, rel),
			size: info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, total, nil
}

func (p *Publisher) put(ctx context.Context, f upload, bar *progressbar.ProgressBar) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	var body io.Reader = file
	if bar != nil {
		r := progressbar.NewReader(file, bar)
		body = &r
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Bucket),
		Key:           aws.String(f.key),
		Body:          body,
		ContentLength: aws.Int64(f.size),
		ContentType:   aws.String(ContentType(f.path)),
	})
	return err
}

func objectKey(prefix, rel string) string {
	key := filepath.ToSlash(rel)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = path.Join(prefix, key)
	}
	return key
}

// ContentType guesses the media type of a result file.
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".rpm"):
		return "application/x-rpm"
	case strings.HasSuffix(name, ".zst"):
		return "application/zstd"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
