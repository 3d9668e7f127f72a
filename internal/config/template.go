package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 输入为 ./uploads 目录，Writer 输出到 ./out；Options 列出全部键（值为中性默认）。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:     []string{"uploads"},
		Output:     Output{CSV: d.Output.CSV, Report: "report.jsonl", Session: "session.json"},
		Logging:    d.Logging,
		Cache:      d.Cache,
		Components: d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git"],
  "max_file_bytes": 0
}`)
	cfg.Options.Extractor = json.RawMessage(`{
  "block_mode": "paragraph",
  "max_part_bytes": 0
}`)
	cfg.Options.Indexer = json.RawMessage(`{
  "code_label": "",
  "labels": [],
  "link_marker": "View Ad"
}`)
	cfg.Options.Expander = json.RawMessage(`{
  "max_depth": 8,
  "max_entry_bytes": 0
}`)
	cfg.Options.Matcher = json.RawMessage(`{
  "case_insensitive": false
}`)
	cfg.Options.Exporter = json.RawMessage(`{
  "extra_columns": false,
  "bom": false
}`)
	cfg.Options.Report = json.RawMessage(`{
  "include_source": false
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": false,
  "no_clobber": false,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

// DefaultTemplateEnv 返回与模板配套的 .env 示例（全部注释，按需启用）。
func DefaultTemplateEnv() string {
	return `# admatch 环境变量（优先级高于配置文件，低于命令行）
# ADMATCH_INPUTS=uploads
# ADMATCH_DOCUMENT=
# ADMATCH_QUERY=
# ADMATCH_LOG_LEVEL=info
# ADMATCH_OUTPUT_CSV=Ad_List.csv
# ADMATCH_COMPONENTS_WRITER=s3
# ADMATCH_OPTIONS_WRITER_JSON={"endpoint":"localhost:9000","bucket":"ads","access_key":"","secret_key":""}
`
}
