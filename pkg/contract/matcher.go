package contract

import "context"

// Matcher: 以文件名子串包含关系为每个码挑选素材。
// 约束：
//  1. 每个输入码在结果中都有键（未命中为空切片）；
//  2. 命中素材保持输入顺序；
//  3. 复杂度 O(codes × assets)，为已知的规模上限；
//  4. 子串语义包含已知误报（"12345678" 命中 "…123456789…"），不做修正。
type Matcher interface {
	Match(ctx context.Context, codes []AdCode, assets []Asset) (AssetIndex, error)
}
