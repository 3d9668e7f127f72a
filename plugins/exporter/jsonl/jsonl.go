package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"admatch/pkg/contract"
)

// Options 为 JSONL 报告导出器的可选配置。
type Options struct {
	// IncludeSource: 附带来源块原文（体积较大，默认关闭）。
	IncludeSource bool `json:"include_source"`
}

// Line 为报告中的一行。
type Line struct {
	Code       string            `json:"code"`
	Source     string            `json:"source"`
	Fields     map[string]string `json:"fields"`
	Link       string            `json:"link"`
	Notes      string            `json:"notes,omitempty"`
	Assets     []string          `json:"assets"`
	Media      []string          `json:"media"`
	Matched    bool              `json:"matched"`
	SourceText string            `json:"source_text,omitempty"`
}

// Exporter 每个广告输出一行 JSON 对象。
type Exporter struct {
	withSource bool
}

var _ contract.Exporter = (*Exporter)(nil)

// New 创建 JSONL 导出器。
func New(opts *Options) *Exporter {
	return &Exporter{withSource: opts != nil && opts.IncludeSource}
}

// Ext 返回 ".jsonl"。
func (e *Exporter) Ext() string { return ".jsonl" }

// Export 按输入顺序逐行编码；字段按 RecordFields 补齐哨兵值。
func (e *Exporter) Export(ctx context.Context, rows []contract.Row) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ln := Line{
			Code:    string(r.Record.Code),
			Source:  r.Record.Source.String(),
			Fields:  make(map[string]string, len(contract.RecordFields)),
			Link:    r.Record.Link,
			Notes:   r.Notes,
			Assets:  r.Assets,
			Media:   r.Media,
			Matched: len(r.Assets) > 0,
		}
		for _, f := range contract.RecordFields {
			ln.Fields[f] = r.Record.Field(f)
		}
		if ln.Link == "" {
			ln.Link = contract.LinkNotFound
		}
		if ln.Assets == nil {
			ln.Assets = []string{}
		}
		if ln.Media == nil {
			ln.Media = []string{}
		}
		if e.withSource {
			ln.SourceText = r.Record.SourceText
		}
		if err := enc.Encode(ln); err != nil {
			return nil, err
		}
	}
	return bytes.NewReader(buf.Bytes()), nil
}
