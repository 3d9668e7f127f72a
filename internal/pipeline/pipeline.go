package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"admatch/internal/catalog"
	"admatch/internal/diag"
	"admatch/internal/memo"
	"admatch/internal/session"
	"admatch/pkg/contract"
	"admatch/plugins/matcher/substring"
)

// 单次运行：读取 → 会话快照 → 展开 → 选主文档 → 提取+索引 → 匹配 → 目录视图 → 导出 → 写出。
// - 全程单 goroutine；组件均为同步实现；
// - 主文档容器无法打开时中止；归档成员问题只告警并计数；
// - 工件写出顺序固定：CSV、报告、会话 JSON、快照包。

// DefaultCSVName 为默认 CSV 工件名。
const DefaultCSVName = "Ad_List.csv"

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Extractor contract.Extractor
	Indexer   contract.Indexer
	Expander  contract.Expander
	Matcher   contract.Matcher
	CSV       contract.Exporter
	// Report 可选（nil 时不输出报告）。
	Report contract.Exporter
	Writer contract.Writer
	// Cache 可选；跨多次 Run 复用时传入同一实例。
	Cache *memo.Cache
}

// Settings 运行期配置。
type Settings struct {
	// Inputs: 上传项根（文件/目录/"-"）。
	Inputs []string
	// Document: 显式主文档路径；非空时优先于展开得到的主文档。
	Document string
	// Kind: 显式文档类型；为空按文件名推断。
	Kind contract.DocKind
	// Query: 导出前的搜索过滤；为空导出全部。
	Query string
	// Sessions: 按顺序合并的会话快照（JSON 或快照包）。
	Sessions []string
	// CSVName/ReportName: 工件名；CSVName 为空使用 DefaultCSVName，ReportName 为空不输出报告。
	CSVName    string
	ReportName string
	// SessionName: 非空时写出会话 JSON；FlatSession 选择轻量格式。
	SessionName string
	FlatSession bool
	// SnapshotName: 非空时写出完整快照包（会话 + 主文档 + 素材）。
	SnapshotName string
	// Variant: 组件选项指纹，参与缓存键。
	Variant string
}

// Result 为一次运行的汇总。
type Result struct {
	Document  string
	Entries   []catalog.Entry
	Stats     catalog.Stats
	Unmatched []contract.Asset
	Warnings  []error
	State     *session.State
}

// Run 执行完整流程并写出工件。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Result, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	eng, err := NewEngine(comp, comp.Cache, set.Variant, logger)
	if err != nil {
		return nil, err
	}
	runStart := time.Now()
	term := diag.GetTerminal()
	res := &Result{State: session.NewState()}

	// 读取上传项
	var uploads []contract.Upload
	if len(set.Inputs) > 0 {
		t := logger.Start("reader", "read inputs")
		if uploads, err = readAll(ctx, comp.Reader, set.Inputs); err != nil {
			return nil, stageErr(logger, "reader", t, err)
		}
		diag.IncOp("reader", "finish", "success")
		t.Finish("inputs read", int64(len(uploads)))
	}
	term.RunStart(len(uploads))

	// 会话快照（可能携带主文档与素材）
	var bundled []contract.Asset
	var bundledPrimary *contract.Upload
	for _, p := range set.Sessions {
		t := logger.StartWith("session", "import snapshot", p)
		items, err := readAll(ctx, comp.Reader, []string{p})
		if err != nil {
			return nil, stageErr(logger, "session", t, err)
		}
		for _, it := range items {
			b, err := res.State.ImportAny(it.Data)
			if err != nil {
				return nil, stageErr(logger, "session", t, fmt.Errorf("%s: %w", it.Name, err))
			}
			if b.Primary != nil {
				bundledPrimary = b.Primary
			}
			bundled = append(bundled, b.Assets...)
			diag.IncOp("session", "finish", "success")
			t.Finish("snapshot merged", int64(b.Entries))
		}
	}

	// 展开
	exp, err := eng.Expand(ctx, uploads)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	res.Warnings = exp.Warnings
	for _, w := range exp.Warnings {
		var me *contract.ArchiveMemberError
		kv := map[string]string{}
		if errors.As(w, &me) {
			kv["archive"], kv["member"] = me.Archive, me.Member
		}
		logger.Warn("expander", string(diag.CodeArchive), w.Error(), kv)
		diag.IncError("expander", string(diag.CodeArchive))
		term.Warn(w.Error())
	}
	assets := mergeAssets(exp.Assets, bundled)
	term.Stage("expand", len(assets))

	// 主文档：显式 > 展开 > 快照包
	primary := exp.Primary
	if primary == nil {
		primary = bundledPrimary
	}
	if set.Document != "" {
		t := logger.StartWith("reader", "read document", set.Document)
		docs, err := readAll(ctx, comp.Reader, []string{set.Document})
		if err != nil {
			return nil, stageErr(logger, "reader", t, err)
		}
		if len(docs) != 1 {
			return nil, stageErr(logger, "reader", t, fmt.Errorf("%w: document %q resolved to %d files", contract.ErrInvalidInput, set.Document, len(docs)))
		}
		t.Finish("document read", 1)
		primary = &contract.Upload{Name: contract.BaseName(docs[0].Name), Data: docs[0].Data}
	}
	if primary == nil {
		err := contract.ErrNoDocument
		logger.Error("pipeline", string(diag.Report("pipeline", err)), err.Error(), nil)
		return nil, err
	}
	res.Document = primary.Name
	term.Document(primary.Name)

	kind := set.Kind
	if kind == "" {
		kind = contract.KindFromName(primary.Name)
	}
	cat, err := eng.Extract(ctx, primary.Data, kind)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", primary.Name, err)
	}
	term.Stage("index", len(cat.Codes))

	idx, err := eng.Match(ctx, cat.Codes, assets)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	res.Unmatched = substring.Unmatched(idx, assets)
	if n := len(res.Unmatched); n > 0 {
		logger.DebugStart("matcher", "assets matched by no code", "", map[string]string{"count": itoa(n)})
	}

	all := catalog.Build(cat, idx, res.State)
	res.Stats = catalog.Summarize(all)
	res.Entries = catalog.Filter(all, set.Query)
	rows := catalog.Rows(res.Entries)
	term.Stage("match", res.Stats.WithAssets)

	// 导出与写出
	csvName := set.CSVName
	if csvName == "" {
		csvName = DefaultCSVName
	}
	if err := exportTo(ctx, logger, comp.CSV, comp.Writer, csvName, rows); err != nil {
		return nil, err
	}
	if comp.Report != nil && set.ReportName != "" {
		if err := exportTo(ctx, logger, comp.Report, comp.Writer, set.ReportName, rows); err != nil {
			return nil, err
		}
	}
	if set.SessionName != "" {
		var data []byte
		if set.FlatSession {
			data, err = res.State.ExportFlat()
		} else {
			data, err = res.State.Export()
		}
		if err != nil {
			return nil, fmt.Errorf("session export: %w", err)
		}
		if err := writeArtifact(ctx, logger, comp.Writer, set.SessionName, bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}
	if set.SnapshotName != "" {
		var buf bytes.Buffer
		if err := res.State.ExportArchive(&buf, primary, assets); err != nil {
			return nil, fmt.Errorf("snapshot export: %w", err)
		}
		if err := writeArtifact(ctx, logger, comp.Writer, set.SnapshotName, bytes.NewReader(buf.Bytes())); err != nil {
			return nil, err
		}
	}
	logger.InfoFinish("pipeline", "run complete", runStart, int64(len(rows)))
	term.RunFinish(true, res.Stats.Total, res.Stats.WithAssets, time.Since(runStart))
	return res, nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Extractor == nil || c.Indexer == nil || c.Expander == nil || c.Matcher == nil || c.CSV == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 && s.Document == "" && len(s.Sessions) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}

// readAll 读取 roots 下全部文件为上传项（Reader 已按稳定顺序回调）。
func readAll(ctx context.Context, r contract.Reader, roots []string) ([]contract.Upload, error) {
	var out []contract.Upload
	err := r.Iterate(ctx, roots, func(id contract.FileID, rc io.ReadCloser) error {
		b, err := io.ReadAll(rc)
		cerr := rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", id, err)
		}
		if cerr != nil {
			return fmt.Errorf("close %s: %w", id, cerr)
		}
		out = append(out, contract.Upload{Name: string(id), Data: b})
		return nil
	})
	return out, err
}

// mergeAssets 追加快照包中的素材；按 Path 去重，已展开者优先。
func mergeAssets(primary, extra []contract.Asset) []contract.Asset {
	if len(extra) == 0 {
		return primary
	}
	seen := make(map[string]bool, len(primary))
	out := make([]contract.Asset, 0, len(primary)+len(extra))
	for _, a := range primary {
		seen[a.Path] = true
		out = append(out, a)
	}
	for _, a := range extra {
		if seen[a.Path] {
			continue
		}
		seen[a.Path] = true
		out = append(out, a)
	}
	return out
}

// exportTo 编码并写出；name 无扩展名时补上导出器的默认扩展名。
func exportTo(ctx context.Context, logger *diag.Logger, ex contract.Exporter, w contract.Writer, name string, rows []contract.Row) error {
	if path.Ext(name) == "" {
		name += ex.Ext()
	}
	t := logger.StartWith("exporter", "export rows", name)
	r, err := ex.Export(ctx, rows)
	if err != nil {
		return stageErr(logger, "exporter", t, err)
	}
	diag.IncOp("exporter", "finish", "success")
	t.Finish("rows exported", int64(len(rows)))
	return writeArtifact(ctx, logger, w, name, r)
}

func writeArtifact(ctx context.Context, logger *diag.Logger, w contract.Writer, name string, r io.Reader) error {
	t := logger.StartWith("writer", "write artifact", name)
	if err := w.Write(ctx, contract.ArtifactID(name), r); err != nil {
		return stageErr(logger, "writer", t, fmt.Errorf("write %s: %w", name, err))
	}
	diag.IncOp("writer", "finish", "success")
	t.Finish("artifact written", 1)
	return nil
}

// stageErr 记录并上报阶段错误，原样返回。
func stageErr(logger *diag.Logger, comp string, t *diag.Timer, err error) error {
	code := diag.Report(comp, err)
	logger.ErrorWith(comp, string(code), err.Error(), t.Since(), "")
	if term := diag.GetTerminal(); term != nil {
		term.RunFinish(false, 0, 0, 0)
	}
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }
