package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "admatch/internal/config"
	"admatch/internal/diag"
	"admatch/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

// exitError 携带退出码；err 为空表示已自行输出诊断。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && !errors.Is(ee.err, context.Canceled) {
			fprintf(stderr, "%v\n", ee.err)
		}
		return ee.code
	}
	// cobra 自身的参数/旗标错误
	fprintf(stderr, "%v\n", err)
	return exitConfig
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admatch",
		Short:         "从演示文稿/文档中提取广告码并匹配素材文件",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRunCmd(), newInitCmd(), newSessionCmd())
	return root
}

// runFlags 为 run 子命令的旗标（空值表示不覆盖配置）。
type runFlags struct {
	config          string
	document        string
	kind            string
	query           string
	sessions        []string
	exportSession   string
	flatSession     bool
	snapshot        string
	csv             string
	report          string
	caseInsensitive bool
	logLevel        string
	status          bool
	metricsFile     string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [roots...]",
		Short: "提取广告码、匹配素材并写出 CSV 等工件",
		Long: "位置参数为上传项（文件/目录，或 \"-\" 表示 STDIN 上的 zip 包，不能与其他根混用）。\n" +
			"优先级：CLI > ENV(.env) > 配置文件 > 默认值。",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（JSON/YAML）；缺省读取 ./config.json（若存在）")
	fl.StringVar(&f.document, "document", "", "显式主文档（pptx/docx）")
	fl.StringVar(&f.kind, "kind", "", "主文档类型：slides|document（缺省按扩展名）")
	fl.StringVar(&f.query, "query", "", "导出前按关键字过滤（大小写不敏感）")
	fl.StringArrayVar(&f.sessions, "session", nil, "导入会话 JSON 或快照包（可重复，按顺序合并）")
	fl.StringVar(&f.exportSession, "export-session", "", "写出会话 JSON 的工件名")
	fl.BoolVar(&f.flatSession, "flat-session", false, "会话 JSON 使用 {code: notes} 轻量格式")
	fl.StringVar(&f.snapshot, "snapshot", "", "写出快照包（会话 + 主文档 + 素材）的工件名")
	fl.StringVar(&f.csv, "csv", "", "CSV 工件名（默认 Ad_List.csv）")
	fl.StringVar(&f.report, "report", "", "JSONL 报告工件名")
	fl.BoolVar(&f.caseInsensitive, "case-insensitive", false, "素材名匹配忽略大小写")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "运行结束后写出 Prometheus 文本格式指标")
	return cmd
}

func runPipeline(cmd *cobra.Command, roots []string, f runFlags) error {
	start := time.Now()
	stderr := cmd.ErrOrStderr()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	if err := loadDotEnv(".env"); err != nil {
		fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}
	// 先占位默认，稍后在解析/合并配置后重建 logger 以使用最终 level
	logger := diag.NewLogger(corrID, "info")
	fail := func(prefix string, err error) error {
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return &exitError{code: exitConfig, err: fmt.Errorf("%s: %w", prefix, err)}
	}

	cfg, err := loadConfig(f.config)
	if err != nil {
		return fail("配置解析失败", err)
	}
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return fail("环境变量解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)
	cfg = cfgpkg.Merge(cfg, cliOverlay(roots, f))

	if err := cfgpkg.Validate(cfg); err != nil {
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(stderr, cfg)
		return fail("配置校验失败", err)
	}

	// 使用最终配置中的日志级别与目录重建 logger
	logger = newLogger(corrID, cfg.Logging)

	// 预检：若使用文件系统 Writer，检查输出目录的可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		return fail("输出目录不可写或无法创建", err)
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return fail("装配失败", err)
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"sessions":     fmt.Sprintf("%d", len(cfg.Sessions)),
		"document":     cfg.Document,
		"variant":      set.Variant,
		"matcher":      cfg.Components.Matcher,
		"writer":       cfg.Components.Writer,
	})

	res, err := pipelineRun(cmd.Context(), comp, set, logger)
	writeMetrics(stderr, f.metricsFile)
	if err != nil {
		// 分类到最接近的退出码（运行期错误）
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return &exitError{code: exitRun, err: fmt.Errorf("运行失败: %w", err)}
	}
	printUnmatched(stderr, res)
	return nil
}

// loadConfig: 配置来源优先级 --config > ADMATCH_CONFIG_FILE > ADMATCH_CONFIG_JSON > ./config.{json,yaml,yml}。
func loadConfig(path string) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	if path == "" {
		path = os.Getenv("ADMATCH_CONFIG_FILE")
	}
	var raw []byte
	if path == "" {
		if s := os.Getenv("ADMATCH_CONFIG_JSON"); s != "" {
			raw = []byte(s)
		}
	}
	if path == "" && len(raw) == 0 {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	var base cfgpkg.Config
	var err error
	switch {
	case len(raw) > 0:
		base, err = cfgpkg.LoadJSON("", raw)
	case path != "":
		base, err = cfgpkg.LoadFile(path)
	default:
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, base), nil
}

func cliOverlay(roots []string, f runFlags) cfgpkg.Config {
	var over cfgpkg.Config
	if len(roots) > 0 {
		over.Inputs = roots
	}
	over.Document = f.document
	over.Kind = f.kind
	over.Query = f.query
	over.Sessions = f.sessions
	over.Output = cfgpkg.Output{
		CSV:         f.csv,
		Report:      f.report,
		Session:     f.exportSession,
		FlatSession: f.flatSession,
		Snapshot:    f.snapshot,
	}
	over.Logging.Level = f.logLevel
	if f.caseInsensitive {
		over.Options.Matcher = json.RawMessage(`{"case_insensitive":true}`)
	}
	return over
}

func newLogger(corrID string, lg cfgpkg.Logging) *diag.Logger {
	level := strings.TrimSpace(lg.Level)
	if level == "" {
		level = "info"
	}
	dir := strings.TrimSpace(lg.Dir)
	if dir == "" || dir == "logs" {
		return diag.NewLogger(corrID, level)
	}
	return diag.NewLoggerTo(diag.NewRotatingFile(dir, 10*1024*1024), corrID, level, false)
}

// printUnmatched 在 stderr 列出未被任何码命中的素材。
func printUnmatched(w io.Writer, res *pipeline.Result) {
	if res == nil || len(res.Unmatched) == 0 {
		return
	}
	fprintf(w, "未匹配素材 %d 个:\n", len(res.Unmatched))
	for _, a := range res.Unmatched {
		fprintf(w, "  %s\n", a.Path)
	}
}

func writeMetrics(w io.Writer, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := diag.WriteTextfile(path); err != nil {
		fprintf(w, "提示：指标写出失败：%v\n", err)
	}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fprintf(w, "有效配置:\n%s\n", b)
	return nil
}

// loadDotEnv 读取 .env 并注入进程环境；文件不存在时忽略，不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 目录存在时尝试创建并删除临时文件；不存在时检查父目录可写。其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	writerName := cfg.Components.Writer
	if strings.TrimSpace(writerName) == "" {
		writerName = cfgpkg.Defaults().Components.Writer
	}
	if strings.TrimSpace(writerName) != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
