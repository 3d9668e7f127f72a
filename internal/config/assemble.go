package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"admatch/internal/memo"
	"admatch/internal/pipeline"
	"admatch/pkg/contract"
	"admatch/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 && strings.TrimSpace(cfg.Document) == "" && len(cfg.Sessions) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	for _, s := range cfg.Sessions {
		if strings.TrimSpace(s) == "" {
			return errors.New("config: session path cannot be empty")
		}
	}
	switch contract.DocKind(cfg.Kind) {
	case "", contract.KindSlides, contract.KindDocument:
	default:
		return fmt.Errorf("config: kind %q must be slides or document", cfg.Kind)
	}
	if cfg.Cache.BlobEntries < 0 || cfg.Cache.DerivedEntries < 0 {
		return errors.New("config: cache entries must be >= 0")
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	c := cfg.Components
	checks := []struct {
		role string
		name string
		ok   func(string) bool
	}{
		{"reader", effName(c.Reader, d.Reader), func(n string) bool { return registry.Reader[n] != nil }},
		{"extractor", effName(c.Extractor, d.Extractor), func(n string) bool { return registry.Extractor[n] != nil }},
		{"indexer", effName(c.Indexer, d.Indexer), func(n string) bool { return registry.Indexer[n] != nil }},
		{"expander", effName(c.Expander, d.Expander), func(n string) bool { return registry.Expander[n] != nil }},
		{"matcher", effName(c.Matcher, d.Matcher), func(n string) bool { return registry.Matcher[n] != nil }},
		{"exporter", effName(c.Exporter, d.Exporter), func(n string) bool { return registry.Exporter[n] != nil }},
		{"report", effName(c.Report, d.Report), func(n string) bool { return registry.Exporter[n] != nil }},
		{"writer", effName(c.Writer, d.Writer), func(n string) bool { return registry.Writer[n] != nil }},
	}
	for _, ch := range checks {
		if !ch.ok(ch.name) {
			return fmt.Errorf("config: %s %q not registered", ch.role, ch.name)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings（含缓存实例与选项指纹）。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults().Components
	names := Components{
		Reader:    effName(cfg.Components.Reader, d.Reader),
		Extractor: effName(cfg.Components.Extractor, d.Extractor),
		Indexer:   effName(cfg.Components.Indexer, d.Indexer),
		Expander:  effName(cfg.Components.Expander, d.Expander),
		Matcher:   effName(cfg.Components.Matcher, d.Matcher),
		Exporter:  effName(cfg.Components.Exporter, d.Exporter),
		Report:    effName(cfg.Components.Report, d.Report),
		Writer:    effName(cfg.Components.Writer, d.Writer),
	}

	var comp pipeline.Components
	var err error
	if comp.Reader, err = registry.Reader[names.Reader](cfg.Options.Reader); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	if comp.Extractor, err = registry.Extractor[names.Extractor](cfg.Options.Extractor); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("extractor: %w", err)
	}
	if comp.Indexer, err = registry.Indexer[names.Indexer](cfg.Options.Indexer); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("indexer: %w", err)
	}
	if comp.Expander, err = registry.Expander[names.Expander](cfg.Options.Expander); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("expander: %w", err)
	}
	if comp.Matcher, err = registry.Matcher[names.Matcher](cfg.Options.Matcher); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("matcher: %w", err)
	}
	if comp.CSV, err = registry.Exporter[names.Exporter](cfg.Options.Exporter); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("exporter: %w", err)
	}
	// 报告仅在需要输出时构造
	if cfg.Output.Report != "" {
		if comp.Report, err = registry.Exporter[names.Report](cfg.Options.Report); err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("report: %w", err)
		}
	}
	if comp.Writer, err = registry.Writer[names.Writer](cfg.Options.Writer); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}
	cache := cfg.Cache
	if comp.Cache, err = memo.New(&cache); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("cache: %w", err)
	}

	variant, err := Variant(names, cfg.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	set := pipeline.Settings{
		Inputs:       cloneStrings(cfg.Inputs),
		Document:     strings.TrimSpace(cfg.Document),
		Kind:         contract.DocKind(cfg.Kind),
		Query:        cfg.Query,
		Sessions:     cloneStrings(cfg.Sessions),
		CSVName:      cfg.Output.CSV,
		ReportName:   cfg.Output.Report,
		SessionName:  cfg.Output.Session,
		FlatSession:  cfg.Output.FlatSession,
		SnapshotName: cfg.Output.Snapshot,
		Variant:      variant,
	}
	return comp, set, nil
}

// Variant 为提取/索引相关组件名与选项的指纹；选项不同的运行不共享缓存结果。
func Variant(names Components, opts Options) (string, error) {
	b, err := json.Marshal(struct {
		Extractor string          `json:"extractor"`
		Indexer   string          `json:"indexer"`
		Expander  string          `json:"expander"`
		ExtOpts   json.RawMessage `json:"extractor_options,omitempty"`
		IdxOpts   json.RawMessage `json:"indexer_options,omitempty"`
		ExpOpts   json.RawMessage `json:"expander_options,omitempty"`
	}{names.Extractor, names.Indexer, names.Expander, compact(opts.Extractor), compact(opts.Indexer), compact(opts.Expander)})
	if err != nil {
		return "", fmt.Errorf("config: variant: %w", err)
	}
	return memo.Digest(b)[:16], nil
}

// compact 去除空白，避免格式差异导致指纹不同。非法 JSON 原样返回（工厂会报错）。
func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
