/*
 * @module service/quality/primitives
 * @description 谓词原语库，沙箱求值器唯一可见的数据操作能力集合
 * @architecture 能力边界层 - 谓词只能通过这里注入的函数操作数据
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.2节
 * @stateFlow 每次求值按数据集快照构建一组闭包，注入解释器参数表
 * @rules 原语库不包含任何文件/网络/进程能力，保证谓词无法逃逸沙箱
 * @dependencies github.com/spf13/cast, golang.org/x/crypto/sha3, service/utils
 * @refs evaluator.go, service/dataset/interface.go
 */

package quality

import (
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"dataquality-service/service/dataset"
	"dataquality-service/service/utils"

	"golang.org/x/crypto/sha3"
)

// 正则编译缓存，谓词反复对同一模式匹配时避免重复编译
var (
	regexCacheMu sync.RWMutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compilePattern(pattern string) *regexp.Regexp {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()
	if ok {
		return re
	}

	// 非法模式直接panic，由求值器统一回收为 EvalError
	re = regexp.MustCompile(pattern)
	regexCacheMu.Lock()
	regexCache[pattern] = re
	regexCacheMu.Unlock()
	return re
}

// buildPrimitives 为一次谓词求值构建参数表
// 数据集快照、绑定标识符与固定原语库之外，谓词看不到任何东西
func buildPrimitives(ds *dataset.Dataset, boundColumn string) map[string]interface{} {
	params := map[string]interface{}{
		"rows":     ds.Rows,
		"columns":  ds.ColumnNames(),
		"column":   boundColumn,
		"table":    ds.TableName,
		"rowCount": ds.RowCount(),
	}

	// 列访问
	params["col"] = func(name string) []interface{} {
		return ds.Column(name)
	}

	// 空值与类型
	params["isNull"] = utils.IsNull
	params["toString"] = utils.ToString
	params["toFloat"] = func(v interface{}) float64 {
		f, _ := utils.ToFloat(v)
		return f
	}
	params["isNumber"] = func(v interface{}) bool {
		_, ok := utils.ToFloat(v)
		return ok
	}

	// 字符串处理
	params["lower"] = strings.ToLower
	params["upper"] = strings.ToUpper
	params["title"] = utils.Title
	params["trim"] = strings.TrimSpace
	params["contains"] = strings.Contains
	params["hasPrefix"] = strings.HasPrefix
	params["hasSuffix"] = strings.HasSuffix
	params["length"] = func(v interface{}) int {
		return len(utils.ToString(v))
	}

	// 正则匹配
	params["matches"] = func(pattern string, v interface{}) bool {
		if utils.IsNull(v) {
			return false
		}
		return compilePattern(pattern).MatchString(utils.ToString(v))
	}

	// 数值谓词
	params["between"] = func(v interface{}, min, max float64) bool {
		f, ok := utils.ToFloat(v)
		if !ok {
			return false
		}
		return f >= min && f <= max
	}
	params["inList"] = func(v interface{}, allowed []interface{}) bool {
		s := utils.ToString(v)
		for _, a := range allowed {
			if s == utils.ToString(a) {
				return true
			}
		}
		return false
	}

	// 列级聚合
	params["countNulls"] = func(values []interface{}) int {
		n := 0
		for _, v := range values {
			if utils.IsNull(v) {
				n++
			}
		}
		return n
	}
	params["distinctCount"] = func(values []interface{}) int {
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			if utils.IsNull(v) {
				continue
			}
			seen[utils.ToString(v)] = struct{}{}
		}
		return len(seen)
	}
	params["sum"] = func(values []interface{}) float64 {
		var total float64
		for _, v := range values {
			if f, ok := utils.ToFloat(v); ok {
				total += f
			}
		}
		return total
	}
	params["mean"] = func(values []interface{}) float64 {
		var total float64
		n := 0
		for _, v := range values {
			if f, ok := utils.ToFloat(v); ok {
				total += f
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return total / float64(n)
	}
	params["minOf"] = func(values []interface{}) float64 {
		var min float64
		first := true
		for _, v := range values {
			if f, ok := utils.ToFloat(v); ok {
				if first || f < min {
					min = f
					first = false
				}
			}
		}
		return min
	}
	params["maxOf"] = func(values []interface{}) float64 {
		var max float64
		first := true
		for _, v := range values {
			if f, ok := utils.ToFloat(v); ok {
				if first || f > max {
					max = f
					first = false
				}
			}
		}
		return max
	}

	// 时间辅助
	params["isDate"] = func(v interface{}) bool {
		_, ok := utils.ToTime(v)
		return ok
	}
	params["daysSince"] = func(v interface{}) float64 {
		t, ok := utils.ToTime(v)
		if !ok {
			return -1
		}
		return time.Since(t).Hours() / 24
	}

	// 值指纹，用于脱敏比对和大值去重
	params["hash"] = func(v interface{}) string {
		digest := sha3.Sum256([]byte(utils.ToString(v)))
		return hex.EncodeToString(digest[:8])
	}

	return params
}
