package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定与日志归类）。
var (
	// ErrExtraction: 主文档容器无法打开/解析（仅中止该文档的处理）。
	ErrExtraction = errors.New("extraction failed")
	// ErrArchiveMember: 批内单个归档成员不可读（跳过并收集告警）。
	ErrArchiveMember = errors.New("archive member unreadable")
	// ErrImport: 会话快照格式错误（拒绝导入，当前状态不变）。
	ErrImport = errors.New("session import rejected")
	// ErrInvalidCode: 非 8 位数字的广告码。
	ErrInvalidCode = errors.New("invalid ad code")
	// ErrInvalidInput: 调用参数不满足前置条件。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrNoDocument: 本批没有可用的主文档。
	ErrNoDocument = errors.New("no primary document")
)

// ExtractionError: 文档级致命错误，携带底层原因。
type ExtractionError struct {
	Kind  DocKind
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("extract %s: %v", e.Kind, ErrExtraction)
	}
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// ArchiveMemberError: 单个归档成员失败；不会中止整批。
type ArchiveMemberError struct {
	Archive string
	Member  string
	Cause   error
}

func (e *ArchiveMemberError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("archive %s: %v", e.Archive, e.Cause)
	}
	return fmt.Sprintf("archive %s: member %s: %v", e.Archive, e.Member, e.Cause)
}

func (e *ArchiveMemberError) Unwrap() error { return e.Cause }

func (e *ArchiveMemberError) Is(target error) bool { return target == ErrArchiveMember }

// ImportError: 快照解析失败；Key 非空时指向出错的键。
type ImportError struct {
	Key   string
	Cause error
}

func (e *ImportError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("session import: %v", e.Cause)
	}
	return fmt.Sprintf("session import: key %q: %v", e.Key, e.Cause)
}

func (e *ImportError) Unwrap() error { return e.Cause }

func (e *ImportError) Is(target error) bool { return target == ErrImport }
