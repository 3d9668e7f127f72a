package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"admatch/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名，大小写不敏感）。
	// __MACOSX 始终跳过。仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// MaxFileBytes: 单个输入文件大小上限；0 表示不限制。超限返回 ErrInvalidInput。
	MaxFileBytes int64 `json:"max_file_bytes"`
}

// FileSystem 实现基于文件系统与 STDIN 的上传项发现。
type FileSystem struct {
	bufSize    int
	maxBytes   int64
	excludeDir map[string]struct{}
}

var _ contract.Reader = (*FileSystem)(nil)

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, excludeDir: map[string]struct{}{"__macosx": {}}}
	if opts == nil {
		return r
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	if opts.MaxFileBytes > 0 {
		r.maxBytes = opts.MaxFileBytes
	}
	for _, name := range opts.ExcludeDirNames {
		if name == "" {
			continue
		}
		r.excludeDir[strings.ToLower(name)] = struct{}{}
	}
	return r
}

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// roots 为空或仅为 "-" 时读取 STDIN（FileID 为 "stdin"，通常是一个 zip 包）。
// 平台元数据文件（.DS_Store、._* 等）静默跳过。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.FileID("stdin"), r.wrap(os.Stdin))
	}
	for _, s := range roots {
		if s == "-" {
			return errors.New("stdin '-' cannot be mixed with other roots")
		}
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	// 符号链接仅跟随到常规文件；目录链接忽略
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			return nil
		}
		return r.emit(root, t, yield)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.emit(root, info, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	// 稳定顺序：字典序；先目录后文件
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		// 非常规文件（设备、fifo）与指向目录的链接跳过
		if !info.Mode().IsRegular() {
			continue
		}
		if err := r.emit(p, info, yield); err != nil {
			return err
		}
	}
	return nil
}

// emit 打开文件并回调；yield 出错时代为关闭。
func (r *FileSystem) emit(p string, info os.FileInfo, yield func(contract.FileID, io.ReadCloser) error) error {
	if contract.IsPlatformMetadata(p) {
		return nil
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes (limit %d)", contract.ErrInvalidInput, p, info.Size(), r.maxBytes)
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	rc := r.wrap(f)
	if err := yield(contract.NormalizeFileID(p), rc); err != nil {
		_ = rc.Close()
		return err
	}
	return nil
}

func (r *FileSystem) wrap(c io.ReadCloser) *bufferedCloser {
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, r.bufSize), c: c}
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
