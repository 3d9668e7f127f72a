package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"admatch/pkg/contract"
)

// Header 为基础列（与原始看板导出的 Ad_List.csv 一致）。
var Header = []string{"Ad Code", contract.FieldBrand, contract.FieldMediaOutlet, contract.FieldMediaType, contract.FieldFirstRun, "Link"}

// Options 为 CSV 导出器的可选配置。
type Options struct {
	// ExtraColumns: 追加 Notes 与 Assets（"; " 连接）两列。
	ExtraColumns bool `json:"extra_columns"`
	// BOM: 输出 UTF-8 BOM，便于 Excel 识别编码。
	BOM bool `json:"bom"`
}

// Exporter 将行编码为带表头的 CSV（UTF-8，每行一个广告）。
type Exporter struct {
	extra bool
	bom   bool
}

var _ contract.Exporter = (*Exporter)(nil)

// New 创建 CSV 导出器。
func New(opts *Options) *Exporter {
	if opts == nil {
		return &Exporter{}
	}
	return &Exporter{extra: opts.ExtraColumns, bom: opts.BOM}
}

// Ext 返回 ".csv"。
func (e *Exporter) Ext() string { return ".csv" }

// Export 按输入顺序写出；缺失字段写哨兵值。
func (e *Exporter) Export(ctx context.Context, rows []contract.Row) (io.Reader, error) {
	var buf bytes.Buffer
	if e.bom {
		buf.WriteString("\uFEFF")
	}
	w := csv.NewWriter(&buf)
	header := Header
	if e.extra {
		header = append(append([]string{}, Header...), "Notes", "Assets")
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := []string{string(r.Record.Code)}
		for _, f := range contract.RecordFields {
			rec = append(rec, r.Record.Field(f))
		}
		link := r.Record.Link
		if link == "" {
			link = contract.LinkNotFound
		}
		rec = append(rec, link)
		if e.extra {
			rec = append(rec, r.Notes, strings.Join(r.Assets, "; "))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}
