package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Output:  Output{CSV: "Ad_List.csv"},
		Logging: Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:    "fs",
			Extractor: "ooxml",
			Indexer:   "labeled",
			Expander:  "zip",
			Matcher:   "substring",
			Exporter:  "csv",
			Report:    "jsonl",
			Writer:    "fs",
		},
		Options: Options{Writer: json.RawMessage(`{"output_dir":"out"}`)},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 解析 YAML：先转为 JSON，再走与 LoadJSON 相同的严格解码。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("yaml: empty document")
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", js)
}

// LoadFile 按扩展名选择解析器（.yaml/.yml 为 YAML，其余按 JSON）。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		return LoadYAML(raw)
	default:
		return LoadJSON(path, nil)
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Document); s != "" {
		out.Document = s
	}
	if s := strings.TrimSpace(over.Kind); s != "" {
		out.Kind = s
	}
	if over.Query != "" {
		out.Query = over.Query
	}
	if len(over.Sessions) > 0 {
		out.Sessions = cloneStrings(over.Sessions)
	}

	// 输出
	if over.Output.CSV != "" {
		out.Output.CSV = over.Output.CSV
	}
	if over.Output.Report != "" {
		out.Output.Report = over.Output.Report
	}
	if over.Output.Session != "" {
		out.Output.Session = over.Output.Session
	}
	if over.Output.FlatSession {
		out.Output.FlatSession = true
	}
	if over.Output.Snapshot != "" {
		out.Output.Snapshot = over.Output.Snapshot
	}

	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if over.Cache.BlobEntries != 0 {
		out.Cache.BlobEntries = over.Cache.BlobEntries
	}
	if over.Cache.DerivedEntries != 0 {
		out.Cache.DerivedEntries = over.Cache.DerivedEntries
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.Extractor, over.Components.Extractor)
	mergeName(&out.Components.Indexer, over.Components.Indexer)
	mergeName(&out.Components.Expander, over.Components.Expander)
	mergeName(&out.Components.Matcher, over.Components.Matcher)
	mergeName(&out.Components.Exporter, over.Components.Exporter)
	mergeName(&out.Components.Report, over.Components.Report)
	mergeName(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.Extractor, over.Options.Extractor)
	mergeRaw(&out.Options.Indexer, over.Options.Indexer)
	mergeRaw(&out.Options.Expander, over.Options.Expander)
	mergeRaw(&out.Options.Matcher, over.Options.Matcher)
	mergeRaw(&out.Options.Exporter, over.Options.Exporter)
	mergeRaw(&out.Options.Report, over.Options.Report)
	mergeRaw(&out.Options.Writer, over.Options.Writer)
	return out
}

func mergeName(dst *string, over string) {
	if s := strings.TrimSpace(over); s != "" {
		*dst = s
	}
}

func mergeRaw(dst *json.RawMessage, over json.RawMessage) {
	if len(bytes.TrimSpace(over)) > 0 {
		*dst = cloneRaw(over)
	}
}

// EnvPrefix 为环境变量覆盖前缀。
const EnvPrefix = "ADMATCH_"

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：INPUTS, DOCUMENT, KIND, QUERY, SESSIONS, LOG_LEVEL, LOG_DIR,
// OUTPUT_{CSV,REPORT,SESSION,FLAT_SESSION,SNAPSHOT}, CACHE_{BLOB,DERIVED}_ENTRIES,
// COMPONENTS_<NAME>, OPTIONS_<NAME>_JSON。数值/布尔解析失败返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		switch key {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "DOCUMENT":
			over.Document = strings.TrimSpace(val)
		case "KIND":
			over.Kind = strings.TrimSpace(val)
		case "QUERY":
			over.Query = val
		case "SESSIONS":
			over.Sessions = splitComma(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "OUTPUT_CSV":
			over.Output.CSV = strings.TrimSpace(val)
		case "OUTPUT_REPORT":
			over.Output.Report = strings.TrimSpace(val)
		case "OUTPUT_SESSION":
			over.Output.Session = strings.TrimSpace(val)
		case "OUTPUT_SNAPSHOT":
			over.Output.Snapshot = strings.TrimSpace(val)
		case "OUTPUT_FLAT_SESSION":
			b, err := parseBool(val)
			if err != nil {
				return Config{}, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			over.Output.FlatSession = b
		case "CACHE_BLOB_ENTRIES", "CACHE_DERIVED_ENTRIES":
			n, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			if key == "CACHE_BLOB_ENTRIES" {
				over.Cache.BlobEntries = n
			} else {
				over.Cache.DerivedEntries = n
			}
		default:
			if name, ok := strings.CutPrefix(key, "COMPONENTS_"); ok {
				if p := componentSlot(&over, name); p != nil {
					*p.name = strings.TrimSpace(val)
				}
				continue
			}
			if name, ok := strings.CutPrefix(key, "OPTIONS_"); ok {
				if name, ok = strings.CutSuffix(name, "_JSON"); ok {
					p := componentSlot(&over, name)
					if p == nil || strings.TrimSpace(val) == "" {
						continue
					}
					if !json.Valid([]byte(val)) {
						return Config{}, fmt.Errorf("%s%s: invalid JSON", EnvPrefix, key)
					}
					*p.raw = json.RawMessage(val)
				}
			}
			// 其余键忽略（例如凭据由 Writer 自身的 options 承载）。
		}
	}
	return over, nil
}

type slot struct {
	name *string
	raw  *json.RawMessage
}

func componentSlot(c *Config, name string) *slot {
	switch name {
	case "READER":
		return &slot{&c.Components.Reader, &c.Options.Reader}
	case "EXTRACTOR":
		return &slot{&c.Components.Extractor, &c.Options.Extractor}
	case "INDEXER":
		return &slot{&c.Components.Indexer, &c.Options.Indexer}
	case "EXPANDER":
		return &slot{&c.Components.Expander, &c.Options.Expander}
	case "MATCHER":
		return &slot{&c.Components.Matcher, &c.Options.Matcher}
	case "EXPORTER":
		return &slot{&c.Components.Exporter, &c.Options.Exporter}
	case "REPORT":
		return &slot{&c.Components.Report, &c.Options.Report}
	case "WRITER":
		return &slot{&c.Components.Writer, &c.Options.Writer}
	default:
		return nil
	}
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
