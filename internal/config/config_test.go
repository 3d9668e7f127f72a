package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"admatch/pkg/contract"
)

// 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("../../testdata/config/basic.json", nil)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(cfg.Inputs) != 1 || cfg.Components.Reader != "fs" || cfg.Output.Report != "report.jsonl" {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if cfg.Cache.BlobEntries != 1024 || cfg.Logging.Level != "debug" {
		t.Fatalf("cache/logging 映射错误: %+v %+v", cfg.Cache, cfg.Logging)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// YAML 与 JSON 共享严格解码
func TestLoadYAML(t *testing.T) {
	cfg, err := LoadFile("../../testdata/config/basic.yaml")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Output.Snapshot != "session.zip" || cfg.Logging.Level != "warn" {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	var m struct {
		CaseInsensitive bool `json:"case_insensitive"`
	}
	if err := json.Unmarshal(cfg.Options.Matcher, &m); err != nil || !m.CaseInsensitive {
		t.Fatalf("matcher options 错误: %s %v", cfg.Options.Matcher, err)
	}
	if !strings.Contains(string(cfg.Options.Indexer), `"field":"Brand"`) {
		t.Fatalf("indexer options 未转为 JSON: %s", cfg.Options.Indexer)
	}

	if _, err := LoadYAML([]byte("inputs: [a]\nbogus: 1\n")); err == nil {
		t.Fatal("未知字段应失败")
	}
	if _, err := LoadYAML([]byte("inputs: [a\n")); err == nil {
		t.Fatal("语法错误应失败")
	}
	if _, err := LoadYAML([]byte("")); err == nil {
		t.Fatal("空文档应失败")
	}
}

// ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"ADMATCH_INPUTS=a,b",
		"ADMATCH_QUERY=acme",
		"ADMATCH_OUTPUT_FLAT_SESSION=true",
		"ADMATCH_CACHE_BLOB_ENTRIES=10",
		"ADMATCH_COMPONENTS_WRITER=s3",
		`ADMATCH_OPTIONS_WRITER_JSON={"bucket":"ads"}`,
		"ADMATCH_UNKNOWN=x",
		"OTHER=1",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if len(over.Inputs) != 2 || over.Query != "acme" || !over.Output.FlatSession || over.Cache.BlobEntries != 10 {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if over.Components.Writer != "s3" || string(over.Options.Writer) != `{"bucket":"ads"}` {
		t.Fatalf("组件覆盖不正确: %+v", over.Components)
	}

	for _, bad := range []string{
		"ADMATCH_CACHE_DERIVED_ENTRIES=many",
		"ADMATCH_OUTPUT_FLAT_SESSION=maybe",
		"ADMATCH_OPTIONS_READER_JSON={not json",
	} {
		if _, err := EnvOverlay([]string{bad}); err == nil {
			t.Fatalf("%s 应失败", bad)
		}
	}
}

// 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	raw := []byte(`{"unknown":1}`)
	if _, err := LoadJSON("", raw); err == nil {
		t.Fatalf("应当返回错误")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应失败")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("缺失文件应返回 ErrNotExist: %v", err)
	}
}

// 优先级：后者覆盖前者；空值不覆盖
func TestMerge(t *testing.T) {
	base := Defaults()
	base.Inputs = []string{"a"}
	over := Config{
		Query:      "q",
		Output:     Output{Report: "r.jsonl", FlatSession: true},
		Components: Components{Matcher: "substring"},
		Options:    Options{Writer: json.RawMessage(`{"output_dir":"elsewhere"}`), Reader: json.RawMessage("  ")},
	}
	got := Merge(base, over)
	if got.Inputs[0] != "a" || got.Query != "q" || got.Output.CSV != "Ad_List.csv" || got.Output.Report != "r.jsonl" {
		t.Fatalf("合并错误: %+v", got)
	}
	if !got.Output.FlatSession || got.Components.Writer != "fs" {
		t.Fatalf("合并错误: %+v", got)
	}
	if string(got.Options.Writer) != `{"output_dir":"elsewhere"}` || got.Options.Reader != nil {
		t.Fatalf("options 合并错误: %s / %s", got.Options.Writer, got.Options.Reader)
	}
	// 源切片不共享
	over.Inputs = []string{"x"}
	got = Merge(base, over)
	over.Inputs[0] = "y"
	if got.Inputs[0] != "x" {
		t.Fatal("Inputs 应复制")
	}
}

// 补充覆盖: splitComma 与 atoi
func TestSplitCommaAtoi(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	if v, err := atoi("10"); err != nil || v != 10 {
		t.Fatalf("atoi 失败: %v %d", err, v)
	}
	if _, err := atoi("x"); err == nil {
		t.Fatal("atoi 应失败")
	}
}

// 补充覆盖: Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Reader != "fs" || d.Components.Exporter != "csv" || d.Output.CSV != "Ad_List.csv" {
		t.Fatalf("默认值错误: %+v", d)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
}

// 补充覆盖: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	cases := map[string]func(*Config){
		"dash":      func(c *Config) { c.Inputs = []string{"-", "a"} },
		"blank":     func(c *Config) { c.Inputs = []string{" "} },
		"session":   func(c *Config) { c.Sessions = []string{""} },
		"kind":      func(c *Config) { c.Kind = "spreadsheet" },
		"cache":     func(c *Config) { c.Cache.DerivedEntries = -1 },
		"extractor": func(c *Config) { c.Components.Extractor = "pdf" },
		"report":    func(c *Config) { c.Components.Report = "xml" },
		"writer":    func(c *Config) { c.Components.Writer = "ftp" },
	}
	for name, mut := range cases {
		cfg := DefaultTemplateConfig()
		mut(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: 应失败", name)
		}
	}
	// 仅会话快照也可运行
	if err := Validate(Config{Sessions: []string{"s.zip"}}); err != nil {
		t.Fatalf("仅会话应通过: %v", err)
	}
}

func TestAssemble(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Options.Writer = json.RawMessage(`{"output_dir":` + quote(t.TempDir()) + `}`)
	cfg.Kind = "slides"
	cfg.Query = "acme"
	comp, set, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("Assemble 失败: %v", err)
	}
	if comp.Reader == nil || comp.Extractor == nil || comp.Indexer == nil || comp.Expander == nil ||
		comp.Matcher == nil || comp.CSV == nil || comp.Report == nil || comp.Writer == nil || comp.Cache == nil {
		t.Fatalf("组件缺失: %+v", comp)
	}
	if comp.CSV.Ext() != ".csv" || comp.Report.Ext() != ".jsonl" {
		t.Fatalf("导出器错误: %s %s", comp.CSV.Ext(), comp.Report.Ext())
	}
	if set.Kind != contract.KindSlides || set.Query != "acme" || set.ReportName != "report.jsonl" || set.SessionName != "session.json" {
		t.Fatalf("Settings 错误: %+v", set)
	}
	if len(set.Variant) != 16 {
		t.Fatalf("Variant 长度错误: %q", set.Variant)
	}

	// 无报告名时不构造报告导出器
	cfg.Output.Report = ""
	comp, _, err = Assemble(cfg)
	if err != nil || comp.Report != nil {
		t.Fatalf("报告应为空: %v %v", comp.Report, err)
	}

	// 工厂严格解析：未知 Option 失败
	cfg.Options.Matcher = json.RawMessage(`{"fuzzy":true}`)
	if _, _, err := Assemble(cfg); err == nil || !strings.HasPrefix(err.Error(), "matcher:") {
		t.Fatalf("未知 option 应失败: %v", err)
	}
	// 缺 output_dir 的 fs writer
	cfg = DefaultTemplateConfig()
	cfg.Options.Writer = json.RawMessage(`{}`)
	if _, _, err := Assemble(cfg); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("应返回 ErrInvalidInput: %v", err)
	}
}

// 指纹忽略空白差异，区分选项差异
func TestVariant(t *testing.T) {
	names := Defaults().Components
	a, err := Variant(names, Options{Indexer: json.RawMessage(`{"link_marker": "View Ad"}`)})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Variant(names, Options{Indexer: json.RawMessage(`{"link_marker":"View Ad"}`)})
	c, _ := Variant(names, Options{Indexer: json.RawMessage(`{"link_marker":"Watch"}`)})
	// Writer 选项不影响提取结果
	d, _ := Variant(names, Options{Indexer: json.RawMessage(`{"link_marker":"View Ad"}`), Writer: json.RawMessage(`{"output_dir":"x"}`)})
	if a != b || a == c || a != d {
		t.Fatalf("指纹不符合预期: %s %s %s %s", a, b, c, d)
	}
}

// 模板必须可被严格解析回读
func TestTemplateRoundTrip(t *testing.T) {
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadJSON("", b)
	if err != nil {
		t.Fatalf("模板回读失败: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("模板校验失败: %v", err)
	}
	if !strings.Contains(DefaultTemplateEnv(), "ADMATCH_INPUTS") {
		t.Fatal(".env 模板缺少键")
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
