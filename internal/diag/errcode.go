package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"admatch/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeExtract   Code = "extract"
	CodeArchive   Code = "archive"
	CodeImport    Code = "import"
	CodeInvariant Code = "invariant"
	CodeNetwork   Code = "network"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrExtraction):
		return CodeExtract
	case errors.Is(err, contract.ErrArchiveMember):
		return CodeArchive
	case errors.Is(err, contract.ErrImport):
		return CodeImport
	}
	// 不变量
	if errors.Is(err, contract.ErrInvalidCode) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) ||
		errors.Is(err, contract.ErrNoDocument) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// Report 统一上报一次失败：op_total{result=error} 与 error_total{code}。
func Report(comp string, err error) Code {
	code := Classify(err)
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
