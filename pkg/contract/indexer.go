package contract

import "context"

// Indexer: 从 TextBlock 序列构建广告码索引。
// 约束：
//  1. 仅识别恰为 8 位的独立数字串（不得截取更长数字串的一部分）；
//  2. 去重后按升序输出；重复码以首次出现的块为准；
//  3. 字段/链接缺失以哨兵值表示，不报错；
//  4. 纯计算，确定性输出。
type Indexer interface {
	Index(ctx context.Context, blocks []TextBlock) (Catalog, error)
}
