package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Bundle file names.
const (
	RepliesFile   = "replies.json"
	FAQFile       = "faq.json"
	PersonaFile   = "system_prompt.txt"
	ReferenceFile = "reference_data.txt"
)

// ErrFileNotFound is returned by a Source when the requested file does not exist.
var ErrFileNotFound = errors.New("catalog: file not found")

//go:embed defaults/*
var defaultFiles embed.FS

// Source reads named bundle files.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	String() string
}

type fsSource struct {
	fsys  fs.FS
	label string
}

// EmbeddedSource serves the bundle compiled into the binary.
func EmbeddedSource() Source {
	sub, err := fs.Sub(defaultFiles, "defaults")
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded defaults missing: %v", err))
	}
	return fsSource{fsys: sub, label: "embedded"}
}

// DirSource reads the bundle from a local directory.
func DirSource(dir string) Source {
	return fsSource{fsys: os.DirFS(filepath.Clean(dir)), label: "dir:" + dir}
}

func (s fsSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, err
}

func (s fsSource) String() string {
	return s.label
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the bundle from objects under a bucket prefix.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source builds a source rooted at s3://bucket/prefix.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if client == nil {
		panic("catalog: s3 client required")
	}
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Source) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrFileNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("catalog: get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

// ParseS3URI splits s3://bucket/prefix into its parts.
func ParseS3URI(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("catalog: %q is not an s3 uri", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("catalog: %q has no bucket", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
