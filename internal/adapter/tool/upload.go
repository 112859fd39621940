package tool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"

	"ensemble-ai/internal/domain"
)

// GenerateFileName builds a collision-resistant object name from a seed
// string: a UTC timestamp plus a short content hash, with the given
// extension.
func GenerateFileName(seed, ext string) string {
	sum := sha256.Sum256([]byte(seed))
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%s.%s",
		time.Now().UTC().Format("20060102T150405"),
		hex.EncodeToString(sum[:])[:12],
		ext,
	)
}

// S3Uploader stores rendered artifacts in an S3 bucket and returns public
// object URLs.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	publicURL string
	logger    *slog.Logger
}

// S3UploaderOptions configures an S3Uploader.
type S3UploaderOptions struct {
	Bucket    string
	Region    string
	KeyPrefix string
	// PublicURL overrides the returned URL base, for buckets fronted by a
	// CDN. Defaults to the virtual-hosted S3 URL.
	PublicURL string
}

// NewS3Uploader creates an uploader using the default AWS credential chain.
func NewS3Uploader(ctx context.Context, opts S3UploaderOptions, logger *slog.Logger) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 uploader: bucket is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, awsCfg.Region)
	}

	return &S3Uploader{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    opts.Bucket,
		keyPrefix: strings.Trim(opts.KeyPrefix, "/"),
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// UploadHTML stores an HTML document and returns its public URL.
func (u *S3Uploader) UploadHTML(ctx context.Context, content, filename string) (string, error) {
	key := filename
	if u.keyPrefix != "" {
		key = u.keyPrefix + "/" + filename
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return "", domain.NewDomainError("s3.upload", domain.ErrProviderError,
			fmt.Sprintf("put object %q: %v", key, err))
	}

	url := u.publicURL + "/" + key
	if u.logger != nil {
		u.logger.Info("uploaded artifact", "bucket", u.bucket, "key", key, "size", len(content))
	}
	return url, nil
}

var _ domain.Uploader = (*S3Uploader)(nil)

// UploadTool lets the model publish an HTML artifact through an Uploader.
type UploadTool struct {
	uploader domain.Uploader
	logger   *slog.Logger
}

// NewUploadTool creates an upload tool backed by the given uploader.
func NewUploadTool(uploader domain.Uploader, logger *slog.Logger) *UploadTool {
	return &UploadTool{uploader: uploader, logger: logger}
}

func (t *UploadTool) Name() string { return "upload_html" }
func (t *UploadTool) Description() string {
	return "Publish an HTML document to shared storage and return its URL."
}

func (t *UploadTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]domain.ParamSpec{
			"content":  {Type: domain.ParamString, Required: true, Description: "Full HTML document to publish"},
			"filename": {Type: domain.ParamString, Description: "Object name; generated from the content when omitted"},
		},
	}
}

type uploadParams struct {
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
}

func (t *UploadTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.upload_html", t.logger, params,
		func(ctx context.Context, span trace.Span, p uploadParams) (any, error) {
			if err := RequireField("content", p.Content); err != nil {
				return nil, err
			}
			filename := p.Filename
			if filename == "" {
				filename = GenerateFileName(p.Content, "html")
			}
			url, err := t.uploader.UploadHTML(ctx, p.Content, filename)
			if err != nil {
				return nil, err
			}
			return map[string]string{"url": url, "filename": filename}, nil
		},
	)
}
