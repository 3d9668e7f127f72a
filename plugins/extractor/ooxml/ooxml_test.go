package ooxml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admatch/internal/fixture"
	"admatch/pkg/contract"
)

func newExtractor(t *testing.T, opts *Options) *Extractor {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func TestSlidesOneBlockPerSlide(t *testing.T) {
	data := fixture.PPTX([]fixture.Slide{
		fixture.TextSlide("Ad Code: 12345678", "Brand: Acme\nMedia: TV"),
		fixture.TextSlide("  ", "Ad Code: 87654321"),
	})
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, contract.SourceID{Kind: contract.KindSlides, Index: 1}, blocks[0].Source)
	assert.Equal(t, "Ad Code: 12345678\nBrand: Acme\nMedia: TV", blocks[0].Text)
	assert.Equal(t, "Ad Code: 87654321", blocks[1].Text, "空形状不应产生空行")
	assert.Empty(t, blocks[1].Links)
}

func TestSlidesPresentationOrder(t *testing.T) {
	data := fixture.PPTX([]fixture.Slide{
		fixture.TextSlide("first part"),
		fixture.TextSlide("second part"),
	}, 1, 0)
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "second part", blocks[0].Text)
	assert.Equal(t, 1, blocks[0].Source.Index)
	assert.Equal(t, "first part", blocks[1].Text)
}

func TestSlidesHyperlinks(t *testing.T) {
	data := fixture.PPTX([]fixture.Slide{{Shapes: []fixture.Shape{
		{Paragraphs: []string{"Ad Code: 12345678"}},
		{Paragraphs: []string{"View Ad"}, Link: "https://ads.example.com/v/1?a=1&b=2"},
		{Paragraphs: []string{"Website"}, RunLink: "https://brand.example.com"},
	}}})
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []contract.Link{
		{Text: "View Ad", Target: "https://ads.example.com/v/1?a=1&b=2"},
		{Text: "Website", Target: "https://brand.example.com"},
	}, blocks[0].Links)
}

func TestSlidesGroupedShapes(t *testing.T) {
	raw := `<?xml version="1.0"?><p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>` +
		`<p:grpSp><p:nvGrpSpPr/><p:sp><p:txBody><a:p><a:r><a:t>Ad Code: 11112222</a:t></a:r><a:br/><a:r><a:t>Brand: Grouped</a:t></a:r></a:p></p:txBody></p:sp></p:grpSp>` +
		`<p:sp><p:txBody><a:p><a:r><a:t>outside</a:t></a:r></a:p></p:txBody></p:sp>` +
		`</p:spTree></p:cSld></p:sld>`
	data := fixture.PPTX([]fixture.Slide{{Raw: raw}})
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Ad Code: 11112222\nBrand: Grouped\noutside", blocks[0].Text)
}

func TestSlidesCorruptSlideSkipped(t *testing.T) {
	data := fixture.PPTX([]fixture.Slide{
		fixture.TextSlide("Ad Code: 12345678"),
		{Raw: `<p:sld xmlns:p="x"><p:cSld>`},
		fixture.TextSlide("Ad Code: 87654321"),
	})
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 1, blocks[0].Source.Index)
	assert.Equal(t, 3, blocks[1].Source.Index)
}

func TestSlidesNumericFallbackOrder(t *testing.T) {
	slide := func(text string) []byte {
		return []byte(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	}
	// 无 presentation.xml：按 slideN 数字序（10 在 2 之后）。
	data := fixture.Zip(
		fixture.Entry{Name: "ppt/slides/slide10.xml", Data: slide("ten")},
		fixture.Entry{Name: "ppt/slides/slide2.xml", Data: slide("two")},
	)
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindSlides)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "two", blocks[0].Text)
	assert.Equal(t, "ten", blocks[1].Text)
}

func TestEmptyContainers(t *testing.T) {
	e := newExtractor(t, nil)
	blocks, err := e.Extract(context.Background(), fixture.PPTX(nil), contract.KindSlides)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = e.Extract(context.Background(), fixture.DOCX(), contract.KindDocument)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestExtractionErrors(t *testing.T) {
	e := newExtractor(t, nil)

	_, err := e.Extract(context.Background(), []byte("definitely not a zip"), contract.KindSlides)
	require.ErrorIs(t, err, contract.ErrExtraction)
	var ee *contract.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, contract.KindSlides, ee.Kind)

	_, err = e.Extract(context.Background(), fixture.PPTX(nil), contract.DocKind("spreadsheet"))
	require.ErrorIs(t, err, contract.ErrExtraction)
	assert.ErrorIs(t, err, contract.ErrInvalidInput)

	noMain := fixture.Zip(fixture.Entry{Name: "word/styles.xml", Data: []byte("<w:styles/>")})
	_, err = e.Extract(context.Background(), noMain, contract.KindDocument)
	require.ErrorIs(t, err, contract.ErrExtraction)
	assert.ErrorIs(t, err, errMissingPart)

	for name, data := range map[string][]byte{
		"docx":  fixture.DOCX(fixture.Paragraph{Text: "12345678"}),
		"plain": fixture.Zip(fixture.Entry{Name: "hello.txt", Data: []byte("hi")}),
	} {
		_, err = e.Extract(context.Background(), data, contract.KindSlides)
		require.ErrorIs(t, err, contract.ErrExtraction, name)
		assert.ErrorIs(t, err, errMissingPart, name)
	}

	broken := fixture.Zip(fixture.Entry{Name: "word/document.xml", Data: []byte(`<w:document xmlns:w="x"><w:body>`)})
	_, err = e.Extract(context.Background(), broken, contract.KindDocument)
	require.ErrorIs(t, err, contract.ErrExtraction)
}

func TestDocumentParagraphs(t *testing.T) {
	data := fixture.DOCX(
		fixture.Paragraph{Text: "Ad Code: 12345678\nBrand: Acme"},
		fixture.Paragraph{Text: ""},
		fixture.Paragraph{Text: "Ad Code: 87654321 ", LinkText: "View Ad", LinkTarget: "https://ads.example.com/2"},
	)
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindDocument)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, contract.SourceID{Kind: contract.KindDocument, Index: 1}, blocks[0].Source)
	assert.Equal(t, "Ad Code: 12345678\nBrand: Acme", blocks[0].Text)
	assert.Equal(t, 3, blocks[1].Source.Index, "空段落仍计入序号")
	assert.Equal(t, "Ad Code: 87654321 View Ad", blocks[1].Text)
	assert.Equal(t, []contract.Link{{Text: "View Ad", Target: "https://ads.example.com/2"}}, blocks[1].Links)
}

func TestDocumentTabsAndFallback(t *testing.T) {
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body>` +
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Brand:</w:t><w:tab/><w:t>Acme</w:t></w:r>` +
		`<mc:AlternateContent><mc:Choice><w:r><w:t> X</w:t></w:r></mc:Choice><mc:Fallback><w:r><w:t> X</w:t></w:r></mc:Fallback></mc:AlternateContent></w:p>` +
		`</w:body></w:document>`
	data := fixture.Zip(fixture.Entry{Name: "word/document.xml", Data: []byte(doc)})
	blocks, err := newExtractor(t, nil).Extract(context.Background(), data, contract.KindDocument)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Brand:\tAcme X", blocks[0].Text)
}

func TestDocumentSectionMode(t *testing.T) {
	data := fixture.DOCX(
		fixture.Paragraph{Text: "Ad Code: 12345678"},
		fixture.Paragraph{Text: "Brand: Acme ", LinkText: "View Ad", LinkTarget: "https://a/1"},
		fixture.Paragraph{},
		fixture.Paragraph{},
		fixture.Paragraph{Text: "Ad Code: 87654321"},
	)
	blocks, err := newExtractor(t, &Options{BlockMode: "Section"}).Extract(context.Background(), data, contract.KindDocument)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Ad Code: 12345678\nBrand: Acme View Ad", blocks[0].Text)
	assert.Len(t, blocks[0].Links, 1)
	assert.Equal(t, 1, blocks[0].Source.Index)
	assert.Equal(t, 5, blocks[1].Source.Index)
}

func TestOptions(t *testing.T) {
	_, err := New(&Options{BlockMode: "page"})
	require.ErrorIs(t, err, contract.ErrInvalidInput)

	e := newExtractor(t, &Options{MaxPartBytes: 16})
	_, err = e.Extract(context.Background(), fixture.DOCX(fixture.Paragraph{Text: "Ad Code: 12345678"}), contract.KindDocument)
	require.ErrorIs(t, err, contract.ErrExtraction)
	assert.True(t, errors.Is(err, errPartTooLarge))

	// 幻灯片超限按单页跳过
	blocks, err := e.Extract(context.Background(), fixture.PPTX([]fixture.Slide{fixture.TextSlide("Ad Code: 12345678")}), contract.KindSlides)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newExtractor(t, nil).Extract(ctx, fixture.PPTX(nil), contract.KindSlides)
	assert.ErrorIs(t, err, context.Canceled)
}
