package config

import (
	"encoding/json"

	"admatch/internal/memo"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Inputs: 上传项根（文件/目录；"-" 表示 STDIN 上的 zip 包）。
	Inputs []string `json:"inputs"`
	// Document: 显式主文档；为空时取上传项中最后出现的 pptx/docx。
	Document string `json:"document"`
	// Kind: slides|document；为空按扩展名推断。
	Kind string `json:"kind"`
	// Query: 导出前过滤。
	Query string `json:"query"`
	// Sessions: 依次合并的会话快照。
	Sessions []string `json:"sessions"`

	Output  Output       `json:"output"`
	Logging Logging      `json:"logging"`
	Cache   memo.Options `json:"cache"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Output: 工件名（相对 Writer 根）；空串表示不输出（csv 除外，空则用默认名）。
type Output struct {
	CSV         string `json:"csv"`
	Report      string `json:"report"`
	Session     string `json:"session"`
	FlatSession bool   `json:"flat_session"`
	Snapshot    string `json:"snapshot"`
}

// Logging: 日志等级与落盘目录。
type Logging struct {
	Level string `json:"level"`
	// Dir: 轮转日志目录；为空使用 logs。
	Dir string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Extractor string `json:"extractor"`
	Indexer   string `json:"indexer"`
	Expander  string `json:"expander"`
	Matcher   string `json:"matcher"`
	Exporter  string `json:"exporter"`
	Report    string `json:"report"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader"`
	Extractor json.RawMessage `json:"extractor"`
	Indexer   json.RawMessage `json:"indexer"`
	Expander  json.RawMessage `json:"expander"`
	Matcher   json.RawMessage `json:"matcher"`
	Exporter  json.RawMessage `json:"exporter"`
	Report    json.RawMessage `json:"report"`
	Writer    json.RawMessage `json:"writer"`
}
