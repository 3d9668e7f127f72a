// Package fixture 构造测试用的内存容器：pptx、docx 与 zip。
// 只生成提取器需要的最小部件集合，不追求 Office 可打开。
package fixture

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
)

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	relPkg       = "http://schemas.openxmlformats.org/package/2006/relationships"
	relSlide     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relHyperlink = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Entry: zip 成员；Name 以 "/" 结尾表示目录项。
type Entry struct {
	Name string
	Data []byte
}

// Zip 按给定顺序写出 zip 归档。
func Zip(entries ...Entry) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			panic(err)
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		if _, err := w.Write(e.Data); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Shape: 幻灯片上的文本形状；Link 非空时挂形状级点击超链接。
type Shape struct {
	Paragraphs []string
	Link       string
	// RunLink: 挂在首个文本 run 上的超链接（文字级）。
	RunLink string
}

// Slide: 一页幻灯片。
type Slide struct {
	Shapes []Shape
	// Raw: 非空时直接作为 slide XML（用于构造损坏页）。
	Raw string
}

// TextSlide 便捷构造：每个参数为一个单段落形状。
func TextSlide(texts ...string) Slide {
	s := Slide{}
	for _, t := range texts {
		s.Shapes = append(s.Shapes, Shape{Paragraphs: strings.Split(t, "\n")})
	}
	return s
}

// PPTX 生成演示文稿；幻灯片顺序由 presentation.xml 的 sldIdLst 决定。
// order 为空时按 slides 顺序；否则 order[i] 为第 i 个展示位置使用的 slides 下标。
func PPTX(slides []Slide, order ...int) []byte {
	if len(order) == 0 {
		for i := range slides {
			order = append(order, i)
		}
	}
	var entries []Entry
	entries = append(entries, Entry{Name: "[Content_Types].xml", Data: []byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`)})

	var ids, rels strings.Builder
	for pos, idx := range order {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+pos, idx+10)
	}
	for i := range slides {
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+10, relSlide, i+1)
	}
	entries = append(entries,
		Entry{Name: "ppt/presentation.xml", Data: []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><p:presentation xmlns:p="%s" xmlns:r="%s"><p:sldIdLst>%s</p:sldIdLst></p:presentation>`, nsP, nsR, ids.String()))},
		Entry{Name: "ppt/_rels/presentation.xml.rels", Data: []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="%s">%s</Relationships>`, relPkg, rels.String()))},
	)

	for i, s := range slides {
		n := i + 1
		if s.Raw != "" {
			entries = append(entries, Entry{Name: fmt.Sprintf("ppt/slides/slide%d.xml", n), Data: []byte(s.Raw)})
			continue
		}
		var body, srels strings.Builder
		rid := 0
		for j, sh := range s.Shapes {
			shapeLink := ""
			if sh.Link != "" {
				rid++
				fmt.Fprintf(&srels, `<Relationship Id="rIdL%d" Type="%s" Target="%s" TargetMode="External"/>`, rid, relHyperlink, html.EscapeString(sh.Link))
				shapeLink = fmt.Sprintf(`<a:hlinkClick r:id="rIdL%d"/>`, rid)
			}
			runLink := ""
			if sh.RunLink != "" {
				rid++
				fmt.Fprintf(&srels, `<Relationship Id="rIdL%d" Type="%s" Target="%s" TargetMode="External"/>`, rid, relHyperlink, html.EscapeString(sh.RunLink))
				runLink = fmt.Sprintf(`<a:rPr><a:hlinkClick r:id="rIdL%d"/></a:rPr>`, rid)
			}
			fmt.Fprintf(&body, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="TextBox %d">%s</p:cNvPr><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:txBody><a:bodyPr/>`, j+2, j+1, shapeLink)
			for k, para := range sh.Paragraphs {
				rp := ""
				if k == 0 {
					rp = runLink
				}
				fmt.Fprintf(&body, `<a:p><a:r>%s<a:t>%s</a:t></a:r></a:p>`, rp, html.EscapeString(para))
			}
			body.WriteString(`</p:txBody></p:sp>`)
		}
		xml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><p:sld xmlns:p="%s" xmlns:a="%s" xmlns:r="%s"><p:cSld><p:spTree>%s</p:spTree></p:cSld></p:sld>`, nsP, nsA, nsR, body.String())
		entries = append(entries, Entry{Name: fmt.Sprintf("ppt/slides/slide%d.xml", n), Data: []byte(xml)})
		if srels.Len() > 0 {
			entries = append(entries, Entry{
				Name: fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n),
				Data: []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="%s">%s</Relationships>`, relPkg, srels.String())),
			})
		}
	}
	return Zip(entries...)
}

// Paragraph: docx 段落；LinkText/LinkTarget 非空时在段尾追加超链接。
type Paragraph struct {
	Text       string
	LinkText   string
	LinkTarget string
}

// DOCX 生成文字处理文档；Text 中的 '\n' 写为 w:br。
func DOCX(paras ...Paragraph) []byte {
	var body, rels strings.Builder
	for i, p := range paras {
		body.WriteString(`<w:p>`)
		for k, line := range strings.Split(p.Text, "\n") {
			if k > 0 {
				body.WriteString(`<w:r><w:br/></w:r>`)
			}
			if line != "" {
				fmt.Fprintf(&body, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, html.EscapeString(line))
			}
		}
		if p.LinkTarget != "" {
			fmt.Fprintf(&rels, `<Relationship Id="rIdH%d" Type="%s" Target="%s" TargetMode="External"/>`, i, relHyperlink, html.EscapeString(p.LinkTarget))
			fmt.Fprintf(&body, `<w:hyperlink r:id="rIdH%d"><w:r><w:t>%s</w:t></w:r></w:hyperlink>`, i, html.EscapeString(p.LinkText))
		}
		body.WriteString(`</w:p>`)
	}
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="%s" xmlns:r="%s"><w:body>%s</w:body></w:document>`, nsW, nsR, body.String())
	entries := []Entry{
		{Name: "[Content_Types].xml", Data: []byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`)},
		{Name: "word/document.xml", Data: []byte(doc)},
	}
	if rels.Len() > 0 {
		entries = append(entries, Entry{
			Name: "word/_rels/document.xml.rels",
			Data: []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="%s">%s</Relationships>`, relPkg, rels.String())),
		})
	}
	return Zip(entries...)
}
