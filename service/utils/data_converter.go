/*
 * @module service/utils/data_converter
 * @description 数据转换工具模块，负责类型转换、空值判断和类型类别归一化
 * @architecture 工具函数模式，提供静态转换方法集合
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.3节
 * @stateFlow 无状态转换：输入 -> 转换逻辑 -> 输出
 * @rules
 *   - 转换操作需要处理异常情况，失败时返回零值而非panic
 *   - 声明类型与运行时类型统一映射到五个类别后再比较
 * @dependencies
 *   - github.com/spf13/cast: 宽松类型转换
 *   - golang.org/x/text: 标题大小写转换
 * @refs service/quality/metrics.go, service/quality/primitives.go
 */

package utils

import (
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// 类型类别，声明类型与运行时类型统一归一化到这五类后比较
const (
	CategoryInteger  = "integer"
	CategoryReal     = "real"
	CategoryText     = "text"
	CategoryTemporal = "temporal"
	CategoryBoolean  = "boolean"
	CategoryUnknown  = "unknown"
)

var titleCaser = cases.Title(language.Und)

// IsNull 判断数据库读取的值是否为空
// 空字符串不算空值，只有 nil（SQL NULL）才算
func IsNull(value interface{}) bool {
	if value == nil {
		return true
	}
	if b, ok := value.([]byte); ok {
		return b == nil
	}
	return false
}

// ToString 转换为字符串，nil 返回空串
func ToString(value interface{}) string {
	if value == nil {
		return ""
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return cast.ToString(value)
}

// ToFloat 宽松转换为浮点数，失败返回 0 和 false
func ToFloat(value interface{}) (float64, bool) {
	if value == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ToTime 宽松解析时间值，支持 time.Time 和常见时间字符串格式
func ToTime(value interface{}) (time.Time, bool) {
	if value == nil {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Title 标题大小写转换
func Title(s string) string {
	return titleCaser.String(s)
}

// DeclaredTypeCategory 将数据库声明类型归一化为类型类别
// 遵循 SQLite 类型亲和性规则：按声明类型中包含的关键字判断
func DeclaredTypeCategory(declared string) string {
	t := strings.ToLower(declared)
	switch {
	case strings.Contains(t, "int") || strings.Contains(t, "serial"):
		return CategoryInteger
	case strings.Contains(t, "real") || strings.Contains(t, "floa") ||
		strings.Contains(t, "doub") || strings.Contains(t, "decimal") ||
		strings.Contains(t, "numeric"):
		return CategoryReal
	case strings.Contains(t, "bool"):
		return CategoryBoolean
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return CategoryTemporal
	case strings.Contains(t, "char") || strings.Contains(t, "text") ||
		strings.Contains(t, "clob") || strings.Contains(t, "uuid") ||
		strings.Contains(t, "json"):
		return CategoryText
	default:
		return CategoryUnknown
	}
}

// RuntimeTypeCategory 将运行时值归一化为类型类别
func RuntimeTypeCategory(value interface{}) string {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return CategoryInteger
	case float32, float64:
		return CategoryReal
	case bool:
		return CategoryBoolean
	case time.Time, *time.Time:
		return CategoryTemporal
	case string, []byte:
		return CategoryText
	default:
		return CategoryUnknown
	}
}

// CategoryConforms 判断运行时类别是否符合声明类别
// 整型值落在 real 声明列中视为符合（数据库普遍向上兼容）；
// 时间值以文本形式存储是 SQLite 的常态，同样视为符合
func CategoryConforms(runtime, declared string) bool {
	if declared == CategoryUnknown || runtime == declared {
		return true
	}
	if declared == CategoryReal && runtime == CategoryInteger {
		return true
	}
	if declared == CategoryTemporal && runtime == CategoryText {
		return true
	}
	if declared == CategoryBoolean && runtime == CategoryInteger {
		return true
	}
	return false
}
