package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTagNameLen 与 tags.name 列宽一致
const MaxTagNameLen = 100

// ParseID 解析路径中的正整数 ID，非法时返回 false
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// NormalizeTagName 标签名去首尾空白并统一小写
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidTagName 规范化后非空且不超过列宽；写入标签和按标签查询共用这一规则
func ValidTagName(name string) bool {
	n := NormalizeTagName(name)
	return n != "" && utf8.RuneCountInString(n) <= MaxTagNameLen
}
