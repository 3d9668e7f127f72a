package contract

import (
	"fmt"
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// BaseName 返回去除目录层级后的文件名（归档成员的匹配键）。
func BaseName(p string) string {
	return path.Base(string(NormalizeFileID(p)))
}

// IsPlatformMetadata 判断路径是否为平台元数据（不属于用户内容）：
// 任一层级为 __MACOSX，或基名以 "._" 开头，或为 .DS_Store/Thumbs.db/desktop.ini。
func IsPlatformMetadata(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == "__MACOSX" {
			return true
		}
	}
	base := path.Base(p)
	switch {
	case strings.HasPrefix(base, "._"):
		return true
	case base == ".DS_Store", strings.EqualFold(base, "Thumbs.db"), strings.EqualFold(base, "desktop.ini"):
		return true
	}
	return false
}

// UniquePath 在 used 中登记 p 并返回批内唯一的路径。
// 冲突时加 "~N/" 目录前缀（N 自 2 起），基名不变，匹配结果因此不受影响。
func UniquePath(used map[string]bool, p string) string {
	out := p
	for n := 2; used[out]; n++ {
		out = fmt.Sprintf("~%d/%s", n, p)
	}
	used[out] = true
	return out
}
