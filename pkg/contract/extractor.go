package contract

import "context"

// Extractor: 打开主文档容器，产出有序 TextBlock。
// 约束：
//  1. 单个块（如无文本的形状、损坏的单页）不可读时静默跳过，不影响整体；
//  2. 空文档返回空切片而非错误；
//  3. 容器本身无法打开时返回 *ExtractionError；
//  4. 纯计算，不做 I/O，不起并发。
type Extractor interface {
	Extract(ctx context.Context, data []byte, kind DocKind) ([]TextBlock, error)
}
