package s3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"admatch/pkg/contract"
)

// Options 为对象存储 Writer 的配置（S3 兼容，含 MinIO）。
type Options struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl"`
	// Prefix: 对象键前缀（如 "admatch/2024-05"）。
	Prefix string `json:"prefix"`
	// PartSize: 未知长度流式上传的分片大小；0 使用 16MiB。
	PartSize uint64 `json:"part_size"`
}

// Writer 以 PutObject 写入导出工件；首次写入时确保 bucket 存在。
type Writer struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	partSize uint64

	mu    sync.Mutex
	ready bool
}

var _ contract.Writer = (*Writer)(nil)

// New 校验配置并创建客户端（不发起网络请求）。
func New(opts *Options) (*Writer, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: s3 writer: options required", contract.ErrInvalidInput)
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	access := strings.TrimSpace(opts.AccessKey)
	secret := strings.TrimSpace(opts.SecretKey)
	bucket := strings.TrimSpace(opts.Bucket)
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("%w: s3 endpoint is required", contract.ErrInvalidInput)
	case access == "" || secret == "":
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", contract.ErrInvalidInput)
	case bucket == "":
		return nil, fmt.Errorf("%w: s3 bucket is required", contract.ErrInvalidInput)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	ps := opts.PartSize
	if ps == 0 {
		ps = 16 << 20
	}
	return &Writer{
		client:   client,
		bucket:   bucket,
		region:   region,
		prefix:   strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		partSize: ps,
	}, nil
}

// ensureBucket 仅在成功后记为就绪；失败（含 ctx 取消）留待下次重试。
func (w *Writer) ensureBucket(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ready {
		return nil
	}
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{Region: w.region}); err != nil {
			return err
		}
	}
	w.ready = true
	return nil
}

// Write 上传 r 的全部字节到 prefix/id。
func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := objectKey(w.prefix, id)
	if err != nil {
		return err
	}
	if err := w.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	size := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}
	_, err = w.client.PutObject(ctx, w.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(key),
		PartSize:    w.partSize,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", w.bucket, key, err)
	}
	return nil
}

// objectKey 规范化为 bucket 内相对键；越界返回 ErrPathInvalid。
func objectKey(prefix string, id contract.ArtifactID) (string, error) {
	rel := strings.TrimPrefix(string(contract.NormalizeFileID(string(id))), "/")
	if rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
	}
	if prefix == "" {
		return rel, nil
	}
	return path.Join(prefix, rel), nil
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
