package registry

import (
	"bytes"
	"encoding/json"

	"admatch/pkg/contract"
	xzip "admatch/plugins/expander/zip"
	ecsv "admatch/plugins/exporter/csv"
	ejsonl "admatch/plugins/exporter/jsonl"
	ooxml "admatch/plugins/extractor/ooxml"
	labeled "admatch/plugins/indexer/labeled"
	substr "admatch/plugins/matcher/substring"
	rfs "admatch/plugins/reader/filesystem"
	wfs "admatch/plugins/writer/filesystem"
	ws3 "admatch/plugins/writer/s3"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewExtractor 工厂签名：接收原样 JSON Options。
type NewExtractor func(raw json.RawMessage) (contract.Extractor, error)

// NewIndexer 工厂签名：接收原样 JSON Options。
type NewIndexer func(raw json.RawMessage) (contract.Indexer, error)

// NewExpander 工厂签名：接收原样 JSON Options。
type NewExpander func(raw json.RawMessage) (contract.Expander, error)

// NewMatcher 工厂签名：接收原样 JSON Options。
type NewMatcher func(raw json.RawMessage) (contract.Matcher, error)

// NewExporter 工厂签名：接收原样 JSON Options。
type NewExporter func(raw json.RawMessage) (contract.Exporter, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Extractor 工厂注册表。
var Extractor = map[string]NewExtractor{
	// ooxml: pptx/docx 文本提取
	"ooxml": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts ooxml.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ooxml.New(&opts)
	},
}

// Indexer 工厂注册表。
var Indexer = map[string]NewIndexer{
	// labeled: 8 位数字码 + 标签字段 + View Ad 链接
	"labeled": func(raw json.RawMessage) (contract.Indexer, error) {
		var opts labeled.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return labeled.New(&opts)
	},
}

// Expander 工厂注册表。
var Expander = map[string]NewExpander{
	// zip: 递归 zip 展开
	"zip": func(raw json.RawMessage) (contract.Expander, error) {
		var opts xzip.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return xzip.New(&opts), nil
	},
}

// Matcher 工厂注册表。
var Matcher = map[string]NewMatcher{
	// substring: 文件名子串包含
	"substring": func(raw json.RawMessage) (contract.Matcher, error) {
		var opts substr.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return substr.New(&opts), nil
	},
}

// Exporter 工厂注册表。
var Exporter = map[string]NewExporter{
	// csv: Ad_List 表格
	"csv": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts ecsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ecsv.New(&opts), nil
	},
	// jsonl: 机器可读匹配报告
	"jsonl": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts ejsonl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejsonl.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// s3: S3/MinIO 对象存储
	"s3": func(raw json.RawMessage) (contract.Writer, error) {
		var opts ws3.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ws3.New(&opts)
	},
}
