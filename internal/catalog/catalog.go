// Package catalog 组合索引结果、素材匹配与会话状态，产出面向展示/导出的条目。
package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"admatch/internal/session"
	"admatch/pkg/contract"
)

// Entry 为单个广告码的展示视图（已应用会话覆盖）。
type Entry struct {
	Record contract.AdRecord
	Assets []contract.Asset
	Notes  string
}

// Build 按 Codes 顺序组合条目；st 可为 nil。
// 会话中没有对应记录的键不渲染，但保留在 st 中。
func Build(cat contract.Catalog, idx contract.AssetIndex, st *session.State) []Entry {
	out := make([]Entry, 0, len(cat.Codes))
	for _, code := range cat.Codes {
		rec, ok := cat.Records[code]
		if !ok {
			continue
		}
		e := Entry{Record: rec.Clone(), Assets: idx[code]}
		if st != nil {
			e.Record, e.Notes = st.Apply(rec)
		}
		out = append(out, e)
	}
	return out
}

// Filter 返回任一列（码、字段、链接、备注、素材名）包含 query 的条目（Unicode 大小写折叠）。
// query 去空白后为空时原样返回。
func Filter(entries []Entry, query string) []Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return entries
	}
	fold := cases.Fold()
	q := fold.String(query)
	var out []Entry
	for _, e := range entries {
		for _, col := range columns(e) {
			if strings.Contains(fold.String(col), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func columns(e Entry) []string {
	cols := make([]string, 0, 4+len(contract.RecordFields)+len(e.Assets))
	cols = append(cols, string(e.Record.Code))
	for _, f := range contract.RecordFields {
		cols = append(cols, e.Record.Field(f))
	}
	cols = append(cols, e.Record.Link, e.Notes)
	for _, a := range e.Assets {
		cols = append(cols, a.Name)
	}
	return cols
}

// Stats 为汇总计数。
type Stats struct {
	Total      int
	WithAssets int
	NoAssets   int
}

// Summarize 统计条目总数与有/无素材的数量。
func Summarize(entries []Entry) Stats {
	s := Stats{Total: len(entries)}
	for _, e := range entries {
		if len(e.Assets) > 0 {
			s.WithAssets++
		}
	}
	s.NoAssets = s.Total - s.WithAssets
	return s
}

// Rows 转为导出器输入。
func Rows(entries []Entry) []contract.Row {
	rows := make([]contract.Row, len(entries))
	for i, e := range entries {
		names := make([]string, len(e.Assets))
		media := make([]string, len(e.Assets))
		for j, a := range e.Assets {
			names[j] = a.Name
			media[j] = a.MediaKind()
		}
		rows[i] = contract.Row{Record: e.Record, Notes: e.Notes, Assets: names, Media: media}
	}
	return rows
}
