package ooxml

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"admatch/pkg/contract"
)

const (
	documentPart = "word/document.xml"
	nsMC         = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// paragraph: 一个 w:p 的可见文本与超链接；index 为文档内序号（自 1 起，含空段）。
type paragraph struct {
	index int
	text  string
	links []contract.Link
}

// document 主部件缺失或 XML 语法错误视为容器损坏。
func (e *Extractor) document(ctx context.Context, p *pkg) ([]contract.TextBlock, error) {
	b, err := p.read(documentPart)
	if err != nil {
		return nil, &contract.ExtractionError{Kind: contract.KindDocument, Cause: err}
	}
	paras, err := parseDocument(ctx, b, p.rels(documentPart))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &contract.ExtractionError{Kind: contract.KindDocument, Cause: err}
	}
	if e.section {
		return sections(paras), nil
	}
	var out []contract.TextBlock
	for _, pa := range paras {
		if pa.text == "" {
			continue
		}
		out = append(out, contract.TextBlock{
			Source: contract.SourceID{Kind: contract.KindDocument, Index: pa.index},
			Text:   pa.text,
			Links:  pa.links,
		})
	}
	return out, nil
}

// sections 将连续非空段落合为一块，空段落为分隔；块序号取首段序号。
func sections(paras []paragraph) []contract.TextBlock {
	var (
		out  []contract.TextBlock
		cur  *contract.TextBlock
		text []string
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(text, "\n")
			out = append(out, *cur)
		}
		cur, text = nil, nil
	}
	for _, pa := range paras {
		if pa.text == "" {
			flush()
			continue
		}
		if cur == nil {
			cur = &contract.TextBlock{Source: contract.SourceID{Kind: contract.KindDocument, Index: pa.index}}
		}
		text = append(text, pa.text)
		cur.Links = append(cur.Links, pa.links...)
	}
	flush()
	return out
}

type openPara struct {
	index int
	b     strings.Builder
	links []contract.Link
}

type openLink struct {
	rid  string
	text strings.Builder
}

// parseDocument 逐 token 收集段落。
// w:tab → '\t'，w:br/w:cr → '\n'（仅 run 内）；mc:Fallback 内容跳过以免文本框重复。
// 嵌套段落（文本框）各自成段，结果按序号排序。
func parseDocument(ctx context.Context, b []byte, rels map[string]string) ([]paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		stack    []*openPara
		link     *openLink
		out      []paragraph
		n        int
		inRun    int
		inText   bool
		fallback int
	)
	write := func(s string) {
		if len(stack) == 0 {
			return
		}
		stack[len(stack)-1].b.WriteString(s)
		if link != nil {
			link.text.WriteString(s)
		}
	}
	for tokens := 0; ; tokens++ {
		if tokens%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsMC && t.Name.Local == "Fallback" {
				fallback++
				continue
			}
			if fallback > 0 || t.Name.Space != nsW {
				continue
			}
			switch t.Name.Local {
			case "p":
				n++
				stack = append(stack, &openPara{index: n})
			case "r":
				inRun++
			case "t":
				inText = inRun > 0
			case "tab":
				if inRun > 0 {
					write("\t")
				}
			case "br", "cr":
				if inRun > 0 {
					write("\n")
				}
			case "hyperlink":
				link = &openLink{rid: relID(t)}
			}
		case xml.CharData:
			if fallback == 0 && inText {
				write(string(t))
			}
		case xml.EndElement:
			if t.Name.Space == nsMC && t.Name.Local == "Fallback" {
				fallback--
				continue
			}
			if fallback > 0 || t.Name.Space != nsW {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				if inRun > 0 {
					inRun--
				}
			case "hyperlink":
				if link != nil && len(stack) > 0 {
					if target := rels[link.rid]; link.rid != "" && target != "" {
						top := stack[len(stack)-1]
						top.links = append(top.links, contract.Link{Text: strings.TrimSpace(link.text.String()), Target: target})
					}
				}
				link = nil
			case "p":
				if len(stack) == 0 {
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out = append(out, paragraph{index: top.index, text: strings.TrimSpace(top.b.String()), links: top.links})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out, nil
}
