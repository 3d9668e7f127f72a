package contract

import (
	"context"
	"io"
)

// Exporter: 将行序列编码为单个导出工件（CSV/JSONL 等）。
// 约束：
//  1. 输出顺序与输入行顺序一致；
//  2. 纯编码，不做过滤/排序；
//  3. 返回的 Reader 只读一次。
type Exporter interface {
	Export(ctx context.Context, rows []Row) (io.Reader, error)
	// Ext 返回工件的默认扩展名（含点）。
	Ext() string
}
