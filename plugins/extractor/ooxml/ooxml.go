package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"admatch/pkg/contract"
)

// XML 命名空间（encoding/xml 将前缀解析为 URI 写入 Name.Space）。
const (
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// 分块模式。
const (
	ModeParagraph = "paragraph"
	ModeSection   = "section"
)

const defaultMaxPartBytes int64 = 64 << 20

// Options 为 OOXML 提取器的可选配置。
type Options struct {
	// BlockMode: docx 分块方式，paragraph（默认）或 section（连续非空段落合为一块）。
	BlockMode string `json:"block_mode"`
	// MaxPartBytes: 单个 XML 部件读取上限；<=0 使用默认 64MiB。
	MaxPartBytes int64 `json:"max_part_bytes"`
}

// Extractor 基于 archive/zip + encoding/xml 的 pptx/docx 文本提取器。
type Extractor struct {
	section bool
	maxPart int64
}

var _ contract.Extractor = (*Extractor)(nil)

// New 创建提取器；未知 block_mode 返回 ErrInvalidInput。
func New(opts *Options) (*Extractor, error) {
	e := &Extractor{maxPart: defaultMaxPartBytes}
	if opts == nil {
		return e, nil
	}
	switch strings.ToLower(strings.TrimSpace(opts.BlockMode)) {
	case "", ModeParagraph:
	case ModeSection:
		e.section = true
	default:
		return nil, fmt.Errorf("%w: ooxml block_mode %q", contract.ErrInvalidInput, opts.BlockMode)
	}
	if opts.MaxPartBytes > 0 {
		e.maxPart = opts.MaxPartBytes
	}
	return e, nil
}

// Extract 打开容器并按类型分派。
func (e *Extractor) Extract(ctx context.Context, data []byte, kind contract.DocKind) ([]contract.TextBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind != contract.KindSlides && kind != contract.KindDocument {
		return nil, &contract.ExtractionError{Kind: kind, Cause: fmt.Errorf("%w: unsupported document kind %q", contract.ErrInvalidInput, kind)}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &contract.ExtractionError{Kind: kind, Cause: err}
	}
	pk := &pkg{files: make(map[string]*zip.File, len(zr.File)), max: e.maxPart}
	for _, f := range zr.File {
		pk.files[strings.TrimPrefix(f.Name, "/")] = f
	}
	if kind == contract.KindSlides {
		return e.slides(ctx, pk)
	}
	return e.document(ctx, pk)
}

// pkg: 已打开的 OPC 包（部件名 → zip 成员）。
type pkg struct {
	files map[string]*zip.File
	max   int64
}

var (
	errPartTooLarge = errors.New("part exceeds size limit")
	errMissingPart  = errors.New("missing part")
)

// read 读取部件；不存在包装 errMissingPart，超限包装 errPartTooLarge。
func (p *pkg) read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part %s: %w", name, errMissingPart)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, p.max+1))
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", name, err)
	}
	if int64(len(b)) > p.max {
		return nil, fmt.Errorf("part %s: %w", name, errPartTooLarge)
	}
	return b, nil
}

type relationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
		Mode   string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// rels 解析 source 部件的关系表，返回 rId → 目标。
// 内部目标解析为包内绝对部件名；External 原样保留。关系表缺失或损坏返回空表。
func (p *pkg) rels(source string) map[string]string {
	dir, file := path.Split(source)
	b, err := p.read(dir + "_rels/" + file + ".rels")
	if err != nil {
		return nil
	}
	var rs relationships
	if err := xml.Unmarshal(b, &rs); err != nil {
		return nil
	}
	out := make(map[string]string, len(rs.Rels))
	for _, r := range rs.Rels {
		if r.ID == "" {
			continue
		}
		t := r.Target
		if !strings.EqualFold(r.Mode, "External") {
			if strings.HasPrefix(t, "/") {
				t = strings.TrimPrefix(t, "/")
			} else {
				t = path.Join(dir, t)
			}
		}
		out[r.ID] = t
	}
	return out
}

// relID 取 r:id 属性。
func relID(se xml.StartElement) string {
	for _, a := range se.Attr {
		if a.Name.Local == "id" && a.Name.Space == nsR {
			return a.Value
		}
	}
	return ""
}
