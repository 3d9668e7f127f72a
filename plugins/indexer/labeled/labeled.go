package labeled

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"admatch/pkg/contract"
)

// Label: 文本标签到字段名的映射；Field 为空表示仅作边界（如 "Ad Code:"）。
type Label struct {
	Label string `json:"label"`
	Field string `json:"field"`
}

// DefaultLabels 为默认的标签顺序。
var DefaultLabels = []Label{
	{Label: "Ad Code:"},
	{Label: "Brand:", Field: contract.FieldBrand},
	{Label: "Media Outlet:", Field: contract.FieldMediaOutlet},
	{Label: "Media:", Field: contract.FieldMediaType},
	{Label: "First Run Date:", Field: contract.FieldFirstRun},
}

// DefaultLinkMarker: 链接可见文本需包含的标记。
const DefaultLinkMarker = "View Ad"

// Options 为标签式索引器的可选配置。
type Options struct {
	// CodeLabel: 非空时仅统计紧随该标签（允许空格/制表符）的数字串。
	CodeLabel string `json:"code_label"`
	// Labels: 字段标签表；为空使用 DefaultLabels。
	Labels []Label `json:"labels"`
	// LinkMarker: 为空使用 DefaultLinkMarker。
	LinkMarker string `json:"link_marker"`
}

// Indexer 在文本块中识别 8 位广告码并按标签抽取字段。
type Indexer struct {
	codeLabel string
	labels    []Label
	fields    []string
	marker    string
}

var _ contract.Indexer = (*Indexer)(nil)

// New 创建索引器；空标签或重复字段返回 ErrInvalidInput。
func New(opts *Options) (*Indexer, error) {
	ix := &Indexer{labels: DefaultLabels, marker: DefaultLinkMarker}
	if opts != nil {
		ix.codeLabel = opts.CodeLabel
		if len(opts.Labels) > 0 {
			ix.labels = opts.Labels
		}
		if opts.LinkMarker != "" {
			ix.marker = opts.LinkMarker
		}
	}
	seen := map[string]bool{}
	for _, l := range ix.labels {
		if l.Label == "" {
			return nil, fmt.Errorf("%w: labeled: empty label", contract.ErrInvalidInput)
		}
		if l.Field == "" {
			continue
		}
		if seen[l.Field] {
			return nil, fmt.Errorf("%w: labeled: duplicate field %q", contract.ErrInvalidInput, l.Field)
		}
		seen[l.Field] = true
		ix.fields = append(ix.fields, l.Field)
	}
	return ix, nil
}

// Index 构建目录：码升序；重复码以首个块为准；每个码都有记录。
func (ix *Indexer) Index(ctx context.Context, blocks []contract.TextBlock) (contract.Catalog, error) {
	cat := contract.Catalog{
		Sources: make(map[contract.AdCode]string),
		Records: make(map[contract.AdCode]contract.AdRecord),
	}
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return contract.Catalog{}, err
		}
		codes := ix.codes(b.Text)
		if len(codes) == 0 {
			continue
		}
		var (
			fields map[string]string
			link   string
		)
		for _, code := range codes {
			if _, dup := cat.Records[code]; dup {
				continue
			}
			if fields == nil {
				fields = ix.extractFields(b.Text)
				link = ix.pickLink(b.Links)
			}
			cp := make(map[string]string, len(fields))
			for k, v := range fields {
				cp[k] = v
			}
			cat.Codes = append(cat.Codes, code)
			cat.Sources[code] = b.Text
			cat.Records[code] = contract.AdRecord{
				Code:       code,
				SourceText: b.Text,
				Source:     b.Source,
				Fields:     cp,
				Link:       link,
			}
		}
	}
	sort.Slice(cat.Codes, func(i, j int) bool { return cat.Codes[i] < cat.Codes[j] })
	return cat, nil
}

// FindCodes 返回 text 中所有恰为 8 位的独立 ASCII 数字串（按出现顺序去重）。
func FindCodes(text string) []contract.AdCode {
	var out []contract.AdCode
	seen := map[contract.AdCode]bool{}
	for i := 0; i < len(text); {
		if !isDigit(text[i]) {
			i++
			continue
		}
		j := i
		for j < len(text) && isDigit(text[j]) {
			j++
		}
		if j-i == contract.CodeLen {
			c := contract.AdCode(text[i:j])
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		i = j
	}
	return out
}

func (ix *Indexer) codes(text string) []contract.AdCode {
	if ix.codeLabel == "" {
		return FindCodes(text)
	}
	var out []contract.AdCode
	seen := map[contract.AdCode]bool{}
	for _, pos := range labelPositions(text, ix.codeLabel) {
		i := skipBlank(text, pos+len(ix.codeLabel))
		j := i
		for j < len(text) && isDigit(text[j]) {
			j++
		}
		if j-i != contract.CodeLen {
			continue
		}
		c := contract.AdCode(text[i:j])
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// extractFields 对每个字段取其标签的首次出现，值截至换行/下一个已知标签/块尾。
func (ix *Indexer) extractFields(text string) map[string]string {
	type hit struct {
		pos   int
		label Label
	}
	var hits []hit
	for _, l := range ix.labels {
		for _, p := range labelPositions(text, l.Label) {
			hits = append(hits, hit{p, l})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make(map[string]string, len(ix.fields))
	for _, f := range ix.fields {
		out[f] = contract.NotAvailable
	}
	done := map[string]bool{}
	for _, h := range hits {
		if h.label.Field == "" || done[h.label.Field] {
			continue
		}
		done[h.label.Field] = true
		start := skipBlank(text, h.pos+len(h.label.Label))
		end := len(text)
		if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
			end = start + nl
		}
		for _, o := range hits {
			if o.pos >= start && o.pos < end {
				end = o.pos
				break
			}
		}
		if v := strings.TrimSpace(text[start:end]); v != "" {
			out[h.label.Field] = v
		}
	}
	return out
}

// pickLink: 可见文本含标记且目标非空的最后一个链接。
func (ix *Indexer) pickLink(links []contract.Link) string {
	link := contract.LinkNotFound
	for _, l := range links {
		if l.Target != "" && strings.Contains(l.Text, ix.marker) {
			link = l.Target
		}
	}
	return link
}

// labelPositions 返回 label 在 text 中位于开头或非字母之后的所有起点。
func labelPositions(text, label string) []int {
	var out []int
	for off := 0; off <= len(text)-len(label); {
		i := strings.Index(text[off:], label)
		if i < 0 {
			break
		}
		p := off + i
		if p == 0 {
			out = append(out, p)
		} else if r, _ := utf8.DecodeLastRuneInString(text[:p]); !unicode.IsLetter(r) {
			out = append(out, p)
		}
		off = p + 1
	}
	return out
}

func skipBlank(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
