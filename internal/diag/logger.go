package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger 为结构化日志器：基于 zerolog 单行 JSON，字段沿用 comp/stage/code/dur_ms/count/file_id/kv。
// 写入默认落到 logs/admatch-current.txt（10MiB 轮转）；nil 接收者上的调用均为 no-op。
type Logger struct {
	zl zerolog.Logger
}

// NewLogger 通过配置的 level 初始化，写入默认路径 logs/，10m 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerTo(NewRotatingFile("logs", 10*1024*1024), corrID, level, false)
}

// NewLoggerTo 将日志写到任意 io.Writer；pretty=true 时使用 zerolog 控制台格式（开发用）。
func NewLoggerTo(w io.Writer, corrID, level string, pretty bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Str("corr_id", corrID).
		Logger()
	return &Logger{zl: zl}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Event 为标准事件的可选字段。
type Event struct {
	Comp   string
	Stage  string // start|finish|warn|error
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(e *zerolog.Event, ev Event) {
	if e == nil {
		return
	}
	e = e.Str("ts", NowUTC()).Str("comp", ev.Comp).Str("stage", ev.Stage)
	if ev.Code != "" {
		e = e.Str("code", ev.Code)
	}
	if ev.DurMS > 0 {
		e = e.Int64("dur_ms", ev.DurMS)
	}
	if ev.Count > 0 {
		e = e.Int64("count", ev.Count)
	}
	if ev.FileID != "" {
		e = e.Str("file_id", ev.FileID)
	}
	if len(ev.KV) > 0 {
		d := zerolog.Dict()
		for k, v := range ev.KV {
			d = d.Str(k, v)
		}
		e = e.Dict("kv", d)
	}
	e.Msg(ev.Msg)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	return l.StartWithKV(comp, msg, fileID, nil)
}

// StartWithKV 记录带 file_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.log(l.zl.Info(), Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Warn 记录可恢复问题（例如跳过的归档成员）。
func (l *Logger) Warn(comp, code, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	l.log(l.zl.Warn(), Event{Comp: comp, Stage: "warn", Code: code, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, nil)
}

// ErrorWithKV 支持附带键值对（例如归档名、S3 状态码）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	if l == nil {
		return
	}
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(l.zl.Error(), Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	if l == nil {
		return
	}
	l.log(l.zl.Info(), Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	if l == nil {
		return
	}
	l.log(l.zl.Debug(), Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish 并上报耗时；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, "finish", dur)
	t.l.log(t.l.zl.Info(), Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, FileID: t.fileID, Msg: msg})
}

// Since 返回计时起点（供 Error 的 durSince 使用）；nil 计时器返回 nil。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
