package substring

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"admatch/pkg/contract"
)

// Options 为子串匹配器的可选配置。
type Options struct {
	// CaseInsensitive: 对文件名做 Unicode 大小写折叠后再比较（码为纯数字，只影响名字一侧）。
	CaseInsensitive bool `json:"case_insensitive"`
}

// Matcher 以 strings.Contains(asset.Name, code) 判定命中。
// 已知误报："12345678" 会命中 "creative_123456789_v2.mp4"。
type Matcher struct {
	fold bool
}

var _ contract.Matcher = (*Matcher)(nil)

// New 创建匹配器。
func New(opts *Options) *Matcher {
	return &Matcher{fold: opts != nil && opts.CaseInsensitive}
}

// Match 为每个码收集命中素材，保持素材输入顺序；未命中的码映射为空切片。
func (m *Matcher) Match(ctx context.Context, codes []contract.AdCode, assets []contract.Asset) (contract.AssetIndex, error) {
	names := make([]string, len(assets))
	var folder cases.Caser
	if m.fold {
		folder = cases.Fold()
	}
	for i, a := range assets {
		if m.fold {
			names[i] = folder.String(a.Name)
		} else {
			names[i] = a.Name
		}
	}
	out := make(contract.AssetIndex, len(codes))
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := string(code)
		if m.fold {
			key = folder.String(key)
		}
		hits := []contract.Asset{}
		for i, n := range names {
			if strings.Contains(n, key) {
				hits = append(hits, assets[i])
			}
		}
		out[code] = hits
	}
	return out, nil
}

// Unmatched 返回未被任何码命中的素材（保持输入顺序）。
func Unmatched(ix contract.AssetIndex, assets []contract.Asset) []contract.Asset {
	hit := make(map[string]bool)
	for _, as := range ix {
		for _, a := range as {
			hit[a.Path] = true
		}
	}
	var out []contract.Asset
	for _, a := range assets {
		if !hit[a.Path] {
			out = append(out, a)
		}
	}
	return out
}
