package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"admatch/pkg/contract"
)

const (
	defaultMaxDepth            = 8
	defaultMaxEntryBytes int64 = 512 << 20
)

var (
	errEntryTooLarge  = errors.New("entry exceeds size limit")
	errDepthExceeded  = errors.New("nested archive depth exceeded")
	localHeaderMagic  = []byte("PK\x03\x04")
	emptyArchiveMagic = []byte("PK\x05\x06")
)

// Options 为归档展开器的可选配置。
type Options struct {
	// MaxDepth: 归档嵌套层数上限（顶层为 1）；<=0 使用默认 8。
	MaxDepth int `json:"max_depth"`
	// MaxEntryBytes: 单个成员解压后大小上限；<=0 使用默认 512MiB。
	MaxEntryBytes int64 `json:"max_entry_bytes"`
}

// Expander 递归展开 zip 上传项。
type Expander struct {
	maxDepth int
	maxEntry int64
}

var _ contract.Expander = (*Expander)(nil)

// New 创建展开器。
func New(opts *Options) *Expander {
	e := &Expander{maxDepth: defaultMaxDepth, maxEntry: defaultMaxEntryBytes}
	if opts != nil {
		if opts.MaxDepth > 0 {
			e.maxDepth = opts.MaxDepth
		}
		if opts.MaxEntryBytes > 0 {
			e.maxEntry = opts.MaxEntryBytes
		}
	}
	return e
}

// Expand 依次处理上传项；主文档最后出现者胜出。
// 归档成员的 Path 以顶层归档名开头；Path 在本批内唯一。
// 成员级问题记入 Warnings，仅 ctx 取消返回错误。
func (e *Expander) Expand(ctx context.Context, uploads []contract.Upload) (contract.Expansion, error) {
	var exp contract.Expansion
	used := make(map[string]bool)
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return contract.Expansion{}, err
		}
		name := string(contract.NormalizeFileID(u.Name))
		if contract.IsPlatformMetadata(name) {
			continue
		}
		base := path.Base(name)
		switch {
		case IsArchive(base, u.Data):
			if err := e.walk(ctx, &exp, used, base, base, u.Data, 1); err != nil {
				return contract.Expansion{}, err
			}
		case contract.KindFromName(base) != "":
			exp.Primary = &contract.Upload{Name: base, Data: u.Data}
		default:
			exp.Assets = append(exp.Assets, contract.NewAsset(contract.UniquePath(used, base), u.Data))
		}
	}
	return exp, nil
}

// IsArchive: 扩展名为 .zip，或无扩展名且以 zip 魔数开头。
// 其它基于 zip 的格式（pptx/docx/xlsx 等）按扩展名视为普通文件。
func IsArchive(name string, data []byte) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".zip" {
		return true
	}
	if ext != "" {
		return false
	}
	return bytes.HasPrefix(data, localHeaderMagic) || bytes.HasPrefix(data, emptyArchiveMagic)
}

// walk 展开一个归档；archive 为用于告警的展示名，prefix 为成员路径前缀（至少为顶层归档名）。
func (e *Expander) walk(ctx context.Context, exp *contract.Expansion, used map[string]bool, archive, prefix string, data []byte, depth int) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		exp.Warnings = append(exp.Warnings, &contract.ArchiveMemberError{Archive: archive, Cause: err})
		return nil
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := strings.TrimPrefix(string(contract.NormalizeFileID(f.Name)), "/")
		if contract.IsPlatformMetadata(name) {
			continue
		}
		warn := func(cause error) {
			exp.Warnings = append(exp.Warnings, &contract.ArchiveMemberError{Archive: archive, Member: f.Name, Cause: cause})
		}
		if name == ".." || strings.HasPrefix(name, "../") {
			warn(fmt.Errorf("%w: %q", contract.ErrPathInvalid, f.Name))
			continue
		}
		if f.UncompressedSize64 > uint64(e.maxEntry) {
			warn(errEntryTooLarge)
			continue
		}
		body, err := e.read(f)
		if err != nil {
			warn(err)
			continue
		}
		full := prefix + "/" + name
		switch {
		case IsArchive(name, body):
			if depth >= e.maxDepth {
				warn(errDepthExceeded)
				continue
			}
			if err := e.walk(ctx, exp, used, archive+"/"+name, full, body, depth+1); err != nil {
				return err
			}
		case contract.KindFromName(name) != "":
			exp.Primary = &contract.Upload{Name: path.Base(name), Data: body}
		default:
			exp.Assets = append(exp.Assets, contract.NewAsset(contract.UniquePath(used, full), body))
		}
	}
	return nil
}

// read 读取成员并校验实际大小（声明值不可信）。
func (e *Expander) read(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, e.maxEntry+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > e.maxEntry {
		return nil, errEntryTooLarge
	}
	return b, nil
}
