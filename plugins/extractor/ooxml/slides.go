package ooxml

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"admatch/pkg/contract"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

const presentationPart = "ppt/presentation.xml"

// slides 每页一个 TextBlock；Source.Index 为展示顺序（自 1 起）。
// 单页损坏跳过；空演示文稿返回空切片。
// 既无 presentation.xml 也无任何 slideN 部件时不是演示文稿，返回 *ExtractionError。
func (e *Extractor) slides(ctx context.Context, p *pkg) ([]contract.TextBlock, error) {
	order := p.slideOrder()
	if len(order) == 0 {
		if _, ok := p.files[presentationPart]; !ok {
			return nil, &contract.ExtractionError{Kind: contract.KindSlides, Cause: fmt.Errorf("part %s: %w", presentationPart, errMissingPart)}
		}
	}
	var out []contract.TextBlock
	for i, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := p.read(name)
		if err != nil {
			continue
		}
		text, links, err := parseSlide(b, p.rels(name))
		if err != nil || text == "" {
			continue
		}
		out = append(out, contract.TextBlock{
			Source: contract.SourceID{Kind: contract.KindSlides, Index: i + 1},
			Text:   text,
			Links:  links,
		})
	}
	return out, nil
}

type presentation struct {
	Slides []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

// slideOrder 返回幻灯片部件名的展示顺序。
// 优先 presentation.xml 的 sldIdLst；不可用时退化为 slideN 的数字序。
func (p *pkg) slideOrder() []string {
	if b, err := p.read(presentationPart); err == nil {
		var pres presentation
		if xml.Unmarshal(b, &pres) == nil && len(pres.Slides) > 0 {
			rels := p.rels(presentationPart)
			seen := make(map[string]bool, len(pres.Slides))
			var out []string
			for _, s := range pres.Slides {
				name := rels[s.RID]
				if _, ok := p.files[name]; !ok || seen[name] {
					continue
				}
				seen[name] = true
				out = append(out, name)
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	type numbered struct {
		n    int
		name string
	}
	var ns []numbered
	for name := range p.files {
		m := slidePartRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ns = append(ns, numbered{n, name})
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].n < ns[j].n })
	out := make([]string, len(ns))
	for i, x := range ns {
		out[i] = x.name
	}
	return out
}

// shape: 正在收集的文本形状。
type shape struct {
	paras  []string
	cur    strings.Builder
	inPara bool
	inText bool
	rids   []string
}

// parseSlide 按出现顺序收集 p:sp 文本（含组合形状内的形状）。
// 每个形状一段：段落以 '\n' 连接后去首尾空白；空形状忽略。
// 形状级与 run 级 hlinkClick 均解析为 Link{Text: 形状文本}。
func parseSlide(b []byte, rels map[string]string) (string, []contract.Link, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		sh    *shape
		frags []string
		links []contract.Link
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsP && t.Name.Local == "sp" {
				sh = &shape{}
				continue
			}
			if sh == nil || t.Name.Space != nsA {
				continue
			}
			switch t.Name.Local {
			case "p":
				sh.inPara = true
				sh.cur.Reset()
			case "t":
				sh.inText = sh.inPara
			case "br":
				if sh.inPara {
					sh.cur.WriteByte('\n')
				}
			case "hlinkClick":
				if id := relID(t); id != "" && !slices.Contains(sh.rids, id) {
					sh.rids = append(sh.rids, id)
				}
			}
		case xml.CharData:
			if sh != nil && sh.inText {
				sh.cur.Write(t)
			}
		case xml.EndElement:
			if sh == nil {
				continue
			}
			switch {
			case t.Name.Space == nsA && t.Name.Local == "t":
				sh.inText = false
			case t.Name.Space == nsA && t.Name.Local == "p":
				sh.paras = append(sh.paras, sh.cur.String())
				sh.inPara = false
			case t.Name.Space == nsP && t.Name.Local == "sp":
				text := strings.TrimSpace(strings.Join(sh.paras, "\n"))
				if text != "" {
					frags = append(frags, text)
				}
				for _, id := range sh.rids {
					if target := rels[id]; target != "" {
						links = append(links, contract.Link{Text: text, Target: target})
					}
				}
				sh = nil
			}
		}
	}
	return strings.Join(frags, "\n"), links, nil
}
