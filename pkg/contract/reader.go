package contract

import (
	"context"
	"io"
)

// Reader: 输入发现（文件/目录）。
// 约束：
// 1) 按文件维度回调，顺序稳定（目录内字典序）；
// 2) FileID 稳定且去平台差异化；
// 3) 不做解码/业务解析，仅提供字节流；
// 4) 跳过平台元数据文件（资源分叉、.DS_Store 等）；
// 5) 不在内部起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, r io.ReadCloser) error) error
}
