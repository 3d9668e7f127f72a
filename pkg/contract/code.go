package contract

import "fmt"

// CodeLen: 广告码固定长度。
const CodeLen = 8

// AdCode: 8 位 ASCII 数字串，下游一切结构的自然键。
type AdCode string

// ValidCode 判断 s 是否为合法广告码。
func ValidCode(s string) bool {
	if len(s) != CodeLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseCode 校验并转换；非法返回 ErrInvalidCode。
func ParseCode(s string) (AdCode, error) {
	if !ValidCode(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	return AdCode(s), nil
}
