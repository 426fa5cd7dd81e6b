/*
 * @module service/quality/evaluator
 * @description 沙箱谓词求值器，基于Yaegi解释器执行规则校验代码
 * @architecture 解释器模式 - 谓词编译缓存 + 受限符号空间执行
 * @documentReference ai_docs/quality_rule_engine_req.md 第4.2节
 * @stateFlow 占位符替换 -> 按返回形态编译(缓存) -> 注入原语 -> 执行
 * @rules
 *   - 解释器不加载任何标准库符号，谓词只能使用注入的原语
 *   - 谓词返回形态在编译期确定：行掩码或标量，入口函数带具体类型签名
 *   - 谓词panic和编译失败都收敛为 EvalError 结果，不得中断整轮执行
 * @dependencies github.com/traefik/yaegi
 * @refs primitives.go, engine.go
 */

package quality

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"sync"

	"dataquality-service/service/dataset"
	"dataquality-service/service/meta"
	"dataquality-service/service/models"

	"github.com/traefik/yaegi/interp"
)

// OutcomeKind 谓词结果形态
type OutcomeKind int

const (
	// OutcomeRowMask 行级掩码，true 表示该行违规
	OutcomeRowMask OutcomeKind = iota
	// OutcomeScalar 表级布尔结论，false 表示整表违规
	OutcomeScalar
	// OutcomeError 谓词自身失败（编译、panic、返回类型非法）
	OutcomeError
)

// EvaluationOutcome 单条规则在单个求值单元上的结果
type EvaluationOutcome struct {
	Kind  OutcomeKind
	Mask  []bool // Kind == OutcomeRowMask 时有效
	Value bool   // Kind == OutcomeScalar 时有效
	Err   string // Kind == OutcomeError 时有效
}

// compiledPredicate 编译后的谓词
// 返回形态在编译期确定：行掩码与标量各持有一个带类型签名的入口函数
// 入口签名不使用 interface{} 返回值，避免解释器在出参转换上的反射开销与缺陷
type compiledPredicate struct {
	kind   OutcomeKind
	mask   func(map[string]interface{}) ([]bool, error)
	scalar func(map[string]interface{}) (bool, error)
}

// PredicateEvaluator 谓词求值器，按代码哈希缓存编译结果
type PredicateEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*compiledPredicate
}

// NewPredicateEvaluator 创建谓词求值器
func NewPredicateEvaluator() *PredicateEvaluator {
	return &PredicateEvaluator{
		cache: make(map[string]*compiledPredicate),
	}
}

// substitutePlaceholders 替换校验代码和提示信息中的占位符
func substitutePlaceholders(text, table, column string) string {
	text = strings.ReplaceAll(text, "{{table}}", table)
	text = strings.ReplaceAll(text, "{{column}}", column)
	return text
}

// Evaluate 在数据集快照上执行一条规则的谓词
// boundColumn 为列级规则的绑定列名；表级规则传空串
// 任何谓词内部失败都转化为 OutcomeError，调用方不会收到panic
func (e *PredicateEvaluator) Evaluate(rule *models.QualityRule, ds *dataset.Dataset, boundColumn string) (outcome EvaluationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = EvaluationOutcome{
				Kind: OutcomeError,
				Err:  fmt.Sprintf("谓词执行panic: %v", r),
			}
		}
	}()

	if rule.Scope == meta.ScopeColumn && boundColumn == "" {
		return EvaluationOutcome{
			Kind: OutcomeError,
			Err:  fmt.Sprintf("列级规则 %s 未绑定目标列", rule.ID),
		}
	}

	code := substitutePlaceholders(rule.Expression, ds.TableName, boundColumn)

	compiled, err := e.compileCached(code)
	if err != nil {
		return EvaluationOutcome{
			Kind: OutcomeError,
			Err:  fmt.Sprintf("谓词编译失败: %v", err),
		}
	}

	params := buildPrimitives(ds, boundColumn)

	if compiled.kind == OutcomeRowMask {
		mask, err := compiled.mask(params)
		if err != nil {
			return EvaluationOutcome{
				Kind: OutcomeError,
				Err:  fmt.Sprintf("谓词执行失败: %v", err),
			}
		}
		if len(mask) != ds.RowCount() {
			return EvaluationOutcome{
				Kind: OutcomeError,
				Err:  fmt.Sprintf("行掩码长度 %d 与行数 %d 不一致", len(mask), ds.RowCount()),
			}
		}
		return EvaluationOutcome{Kind: OutcomeRowMask, Mask: mask}
	}

	value, err := compiled.scalar(params)
	if err != nil {
		return EvaluationOutcome{
			Kind: OutcomeError,
			Err:  fmt.Sprintf("谓词执行失败: %v", err),
		}
	}
	return EvaluationOutcome{Kind: OutcomeScalar, Value: value}
}

// Validate 快速校验规则代码的语法，供规则保存前检查
// 两种返回形态任一编译通过即为合法
func (e *PredicateEvaluator) Validate(code string) error {
	// 用示意占位符替换后编译，占位符本身不是合法的Go语法
	code = substitutePlaceholders(code, "example_table", "example_column")

	i := interp.New(interp.Options{})
	if _, err := i.Compile(wrapPredicate(code, maskReturnType)); err == nil {
		return nil
	}

	i = interp.New(interp.Options{})
	_, err := i.Compile(wrapPredicate(code, scalarReturnType))
	return err
}

// compileCached 编译谓词，代码哈希命中缓存时直接复用
func (e *PredicateEvaluator) compileCached(code string) (*compiledPredicate, error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(code)))

	e.mu.RLock()
	compiled, ok := e.cache[hash]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := e.compile(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[hash] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// 谓词入口的两种返回形态
const (
	maskReturnType   = "[]bool"
	scalarReturnType = "bool"
)

// compile 将谓词代码编译为可执行函数
// 先按行掩码形态编译，失败后退回标量形态；两者都失败视为编译错误
// 解释器不调用 Use 加载任何符号表，谓词能触达的能力以注入的原语为上限
func (e *PredicateEvaluator) compile(code string) (*compiledPredicate, error) {
	maskEntry, maskErr := evalEntry(wrapPredicate(code, maskReturnType))
	if maskErr == nil {
		maskFunc, ok := maskEntry.(func(map[string]interface{}) ([]bool, error))
		if !ok {
			return nil, fmt.Errorf("入口函数签名非法")
		}
		return &compiledPredicate{kind: OutcomeRowMask, mask: maskFunc}, nil
	}

	scalarEntry, scalarErr := evalEntry(wrapPredicate(code, scalarReturnType))
	if scalarErr == nil {
		scalarFunc, ok := scalarEntry.(func(map[string]interface{}) (bool, error))
		if !ok {
			return nil, fmt.Errorf("入口函数签名非法")
		}
		return &compiledPredicate{kind: OutcomeScalar, scalar: scalarFunc}, nil
	}

	return nil, fmt.Errorf("行掩码形态: %v; 标量形态: %v", maskErr, scalarErr)
}

// evalEntry 在新建解释器中求值包装代码并取出 Run 入口
func evalEntry(wrapped string) (interface{}, error) {
	i := interp.New(interp.Options{})

	if _, err := i.Eval(wrapped); err != nil {
		return nil, err
	}

	v, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("谓词缺少入口: %w", err)
	}
	return v.Interface(), nil
}

// wrapPredicate 将谓词代码包装为带原语前导的 Run 函数
// 前导把参数表中的原语断言为具名变量，谓词直接按名字调用
func wrapPredicate(code, returnType string) string {
	return fmt.Sprintf(`
package main

func Run(params map[string]interface{}) (%s, error) {
	rows := params["rows"].([]map[string]interface{})
	columns := params["columns"].([]string)
	column := params["column"].(string)
	table := params["table"].(string)
	rowCount := params["rowCount"].(int)
	col := params["col"].(func(string) []interface{})
	isNull := params["isNull"].(func(interface{}) bool)
	toString := params["toString"].(func(interface{}) string)
	toFloat := params["toFloat"].(func(interface{}) float64)
	isNumber := params["isNumber"].(func(interface{}) bool)
	lower := params["lower"].(func(string) string)
	upper := params["upper"].(func(string) string)
	title := params["title"].(func(string) string)
	trim := params["trim"].(func(string) string)
	contains := params["contains"].(func(string, string) bool)
	hasPrefix := params["hasPrefix"].(func(string, string) bool)
	hasSuffix := params["hasSuffix"].(func(string, string) bool)
	length := params["length"].(func(interface{}) int)
	matches := params["matches"].(func(string, interface{}) bool)
	between := params["between"].(func(interface{}, float64, float64) bool)
	inList := params["inList"].(func(interface{}, []interface{}) bool)
	countNulls := params["countNulls"].(func([]interface{}) int)
	distinctCount := params["distinctCount"].(func([]interface{}) int)
	sum := params["sum"].(func([]interface{}) float64)
	mean := params["mean"].(func([]interface{}) float64)
	minOf := params["minOf"].(func([]interface{}) float64)
	maxOf := params["maxOf"].(func([]interface{}) float64)
	isDate := params["isDate"].(func(interface{}) bool)
	daysSince := params["daysSince"].(func(interface{}) float64)
	hash := params["hash"].(func(interface{}) string)

	_, _, _, _, _ = rows, columns, column, table, rowCount
	_, _, _, _, _ = col, isNull, toString, toFloat, isNumber
	_, _, _, _, _, _, _ = lower, upper, title, trim, contains, hasPrefix, hasSuffix
	_, _, _, _ = length, matches, between, inList
	_, _, _, _, _, _ = countNulls, distinctCount, sum, mean, minOf, maxOf
	_, _, _ = isDate, daysSince, hash

	// 谓词代码
%s
}
`, returnType, code)
}
