package utils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// NameSortKey 把姓名转换为排序用的键，汉字按拼音排序，其他字符转为小写
func NameSortKey(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if unicode.Is(unicode.Han, r) {
			if py := pinyin.LazyConvert(string(r), nil); len(py) > 0 {
				b.WriteString(py[0])
				continue
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
