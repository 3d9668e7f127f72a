package contract

import (
	"fmt"
	"path"
	"strings"
)

// FileID: 逻辑文件ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// DocKind: 主文档容器类型。
type DocKind string

const (
	// KindSlides: 演示文稿（pptx 家族），一页幻灯片一个 TextBlock。
	KindSlides DocKind = "slides"
	// KindDocument: 文字处理文档（docx 家族），按段落产出 TextBlock。
	KindDocument DocKind = "document"
)

// KindFromName 根据扩展名推断主文档类型；未知返回空串。
func KindFromName(name string) DocKind {
	switch strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/"))) {
	case ".pptx", ".pptm", ".potx", ".potm":
		return KindSlides
	case ".docx", ".docm", ".dotx", ".dotm":
		return KindDocument
	default:
		return ""
	}
}

// SourceID: TextBlock 的来源句柄（幻灯片序号或段落序号，均自 1 起）。
type SourceID struct {
	Kind  DocKind
	Index int
}

func (s SourceID) String() string {
	switch s.Kind {
	case KindSlides:
		return fmt.Sprintf("slide:%d", s.Index)
	case KindDocument:
		return fmt.Sprintf("para:%d", s.Index)
	default:
		return fmt.Sprintf("block:%d", s.Index)
	}
}

// Link: 可点击区域（形状或文字超链接）；Text 为可见文本，Target 为解析后的目标。
type Link struct {
	Text   string
	Target string
}

// TextBlock: 提取阶段的原子输出，提取后不可变。
// 约束：
// - Text 内各片段已去除首尾空白并以 '\n' 连接；
// - Links 按出现顺序排列。
type TextBlock struct {
	Source SourceID
	Text   string
	Links  []Link
}

// 字段名（AdRecord.Fields 的键）。
const (
	FieldBrand       = "Brand"
	FieldMediaOutlet = "Media Outlet"
	FieldMediaType   = "Media Type"
	FieldFirstRun    = "First Run"
)

// RecordFields: 导出/渲染时的字段顺序。
var RecordFields = []string{FieldBrand, FieldMediaOutlet, FieldMediaType, FieldFirstRun}

// 缺省哨兵值：缺失不是错误，渲染层需要确定的占位。
const (
	NotAvailable = "N/A"
	LinkNotFound = "Link not found"
)

// AdRecord: 单个广告码的元数据视图（索引后只读）。
type AdRecord struct {
	Code       AdCode
	SourceText string
	Source     SourceID
	Fields     map[string]string
	Link       string
}

// Field 返回字段值；缺失返回 NotAvailable。
func (r AdRecord) Field(name string) string {
	if v, ok := r.Fields[name]; ok && v != "" {
		return v
	}
	return NotAvailable
}

// Clone 深拷贝（Fields 独立）。
func (r AdRecord) Clone() AdRecord {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Catalog: 索引器输出。
// 约束：
// - Codes 升序且唯一；
// - Sources/Records 以首次出现的块为准；
// - 每个 Codes 元素在 Sources 与 Records 中均有条目。
type Catalog struct {
	Codes   []AdCode
	Sources map[AdCode]string
	Records map[AdCode]AdRecord
}

// Upload: 单个上传项（散文件或归档），Name 为原始文件名。
type Upload struct {
	Name string
	Data []byte
}

// Asset: 创意素材。
// Name 为匹配键（去除目录层级的基名）；Path 为归档内原始相对路径，仅用于快照往返。
type Asset struct {
	Name string
	Path string
	Ext  string
	Data []byte
}

// NewAsset 由原始路径构造 Asset（Name 取基名，Ext 小写无点）。
func NewAsset(p string, data []byte) Asset {
	p = string(NormalizeFileID(p))
	name := path.Base(p)
	return Asset{
		Name: name,
		Path: strings.TrimPrefix(p, "/"),
		Ext:  strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
		Data: data,
	}
}

// MediaKind 按扩展名粗分类：image|audio|video|other。
func (a Asset) MediaKind() string {
	switch a.Ext {
	case "png", "jpg", "jpeg", "gif", "bmp", "webp", "tif", "tiff", "svg", "heic":
		return "image"
	case "mp3", "wav", "aac", "m4a", "flac", "ogg", "aif", "aiff", "wma":
		return "audio"
	case "mp4", "mov", "m4v", "avi", "mkv", "webm", "wmv", "mpg", "mpeg", "flv":
		return "video"
	default:
		return "other"
	}
}

// Expansion: 归档展开结果。
// Primary 为本批唯一主文档（最后一个出现者胜出），可能为 nil。
// Warnings 中的元素均为 *ArchiveMemberError。
type Expansion struct {
	Primary  *Upload
	Assets   []Asset
	Warnings []error
}

// AssetIndex: AdCode → 命中的素材（保持素材输入顺序）。纯派生，不持久化。
type AssetIndex map[AdCode][]Asset

// Names 返回某个码命中的素材名列表。
func (ix AssetIndex) Names(code AdCode) []string {
	as := ix[code]
	if len(as) == 0 {
		return nil
	}
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Name
	}
	return out
}

// Row: 导出器输入（已应用会话覆盖）。
type Row struct {
	Record AdRecord
	Notes  string
	Assets []string
	// Media 与 Assets 一一对应，取 Asset.MediaKind()。
	Media []string
}
