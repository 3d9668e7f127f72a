package contract

import "context"

// Expander: 将上传项（散文件/归档）展开为主文档 + 扁平素材列表。
// 约束：
//  1. 递归展开嵌套归档；跳过目录项与平台元数据项；
//  2. 主文档类型的成员进入 Primary，多个时最后一个胜出；
//  3. 单个成员失败记入 Warnings（*ArchiveMemberError），整批继续；
//  4. 仅 ctx 取消作为错误返回。
type Expander interface {
	Expand(ctx context.Context, uploads []Upload) (Expansion, error)
}
