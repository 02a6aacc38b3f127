package tmpl

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// scope 变量作用域链；for 循环在父作用域之上压入新作用域。
type scope struct {
	vars   map[string]any
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// evalCtx 单次渲染的求值上下文
type evalCtx struct {
	name    string
	line    int
	scope   *scope
	filters map[string]Filter
	include Includer
	lenient bool // Profile.StrictUndefined 为 false
}

// missing 处理未定义引用：严格模式报错，宽松模式求值为 nil。
func (c *evalCtx) missing(name string) (any, error) {
	if c.lenient {
		return nil, nil
	}

	return nil, &UndefinedVariableError{Name: name, Template: c.name, Line: c.line}
}

func (c *evalCtx) errorf(format string, args ...any) error {
	return &EvalError{Template: c.name, Line: c.line, Message: fmt.Sprintf(format, args...)}
}

func (e *literalExpr) eval(*evalCtx) (any, error) { return e.val, nil }

func (e *nameExpr) eval(c *evalCtx) (any, error) {
	v, ok := c.scope.lookup(e.name)
	if !ok {
		return c.missing(e.name)
	}

	return v, nil
}

func (e *listExpr) eval(c *evalCtx) (any, error) {
	out := make([]any, 0, len(e.items))
	for _, it := range e.items {
		v, err := it.eval(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

func (e *attrExpr) eval(c *evalCtx) (any, error) {
	obj, err := e.obj.eval(c)
	if err != nil {
		return nil, err
	}
	v, ok := lookupKey(obj, e.attr)
	if !ok {
		return c.missing(e.path)
	}

	return v, nil
}

func (e *indexExpr) eval(c *evalCtx) (any, error) {
	obj, err := e.obj.eval(c)
	if err != nil {
		return nil, err
	}
	idx, err := e.index.eval(c)
	if err != nil {
		return nil, err
	}

	if n, ok := toInt(idx); ok {
		rv := reflect.ValueOf(obj)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if n < 0 {
				n += rv.Len()
			}
			if n < 0 || n >= rv.Len() {
				return c.missing(e.path)
			}
			return rv.Index(n).Interface(), nil
		}
	}
	key, ok := idx.(string)
	if !ok {
		return nil, c.errorf("cannot index %T with %T", obj, idx)
	}
	v, ok := lookupKey(obj, key)
	if !ok {
		return c.missing(e.path)
	}

	return v, nil
}

func (e *notExpr) eval(c *evalCtx) (any, error) {
	v, err := e.x.eval(c)
	if err != nil {
		return nil, err
	}

	return !truthy(v), nil
}

func (e *negExpr) eval(c *evalCtx) (any, error) {
	v, err := e.x.eval(c)
	if err != nil {
		return nil, err
	}
	if i, ok := toInteger(v); ok {
		return fromInteger(i.Neg(i)), nil
	}
	if f, ok := toFloat(v); ok {
		return -f, nil
	}

	return nil, c.errorf("bad operand type for unary -: %T", v)
}

func (e *logicExpr) eval(c *evalCtx) (any, error) {
	l, err := e.l.eval(c)
	if err != nil {
		return nil, err
	}
	// 短路求值：返回决定结果的操作数本身
	if (e.op == "and" && !truthy(l)) || (e.op == "or" && truthy(l)) {
		return l, nil
	}

	return e.r.eval(c)
}

func (e *compareExpr) eval(c *evalCtx) (any, error) {
	l, err := e.l.eval(c)
	if err != nil {
		return nil, err
	}
	r, err := e.r.eval(c)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "in", "not in":
		in, err := contains(r, l)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		return in == (e.op == "in"), nil
	}

	cmp, err := order(l, r)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	switch e.op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func (e *filterExpr) eval(c *evalCtx) (any, error) {
	f, ok := c.filters[e.name]
	if !ok {
		return nil, c.errorf("unknown filter %q", e.name)
	}
	v, err := e.x.eval(c)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(e.args))
	for _, a := range e.args {
		av, err := a.eval(c)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}
	out, err := f(v, args...)
	if err != nil {
		return nil, &FilterError{Template: c.name, Line: c.line, Filter: e.name, Cause: err}
	}

	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 值操作
// ═══════════════════════════════════════════════════════════════════════════

// lookupKey 在 map（字符串键）或结构体（导出字段名）上按名称取值。
func lookupKey(obj any, key string) (any, bool) {
	if m, ok := obj.(map[string]any); ok {
		v, ok := m[key]
		return v, ok
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		f := rv.FieldByName(key)
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	}

	return nil, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if i, ok := toInteger(v); ok {
		return i.Sign() != 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}

	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	return 0, false
}

// toInteger 返回整数类型值的精确表示；浮点数不属于整数。
func toInteger(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case json.Number:
		if i, ok := new(big.Int).SetString(n.String(), 10); ok {
			return i, true
		}
	}

	return nil, false
}

// fromInteger 在 int 范围内返回 int，超出时退回 int64、uint64，最后为 float64。
func fromInteger(i *big.Int) any {
	if i.IsInt64() {
		n := i.Int64()
		if int64(int(n)) == n {
			return int(n)
		}
		return n
	}
	if i.IsUint64() {
		return i.Uint64()
	}
	f, _ := new(big.Float).SetInt(i).Float64()

	return f
}

func toInt(v any) (int, bool) {
	if i, ok := toInteger(v); ok {
		n, ok := fromInteger(i).(int)
		return n, ok
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}

	return int(f), true
}

func equal(a, b any) bool {
	if ia, ok := toInteger(a); ok {
		if ib, ok := toInteger(b); ok {
			return ia.Cmp(ib) == 0
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func order(a, b any) (int, error) {
	if ia, ok := toInteger(a); ok {
		if ib, ok := toInteger(b); ok {
			return ia.Cmp(ib), nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), nil
	}

	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func contains(container, item any) (bool, error) {
	if s, ok := container.(string); ok {
		sub, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %T", item)
		}
		return strings.Contains(s, sub), nil
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			if equal(rv.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		key, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := lookupKey(container, key)
		return found, nil
	}

	return false, fmt.Errorf("argument of type %T is not a container", container)
}

// iterate 把可迭代值展开为切片；map 按键排序后迭代键。
func iterate(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, fmt.Sprint(k.Interface()))
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	}

	return nil, fmt.Errorf("value of type %T is not iterable", v)
}

func length(v any) (int, error) {
	if s, ok := v.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}

	return 0, fmt.Errorf("value of type %T has no length", v)
}

// stringify 把值转换为输出文本。
//
// nil 输出为空串，布尔值为 true/false，整数值的浮点数不带小数部分，
// 复合值输出为紧凑 JSON。
func stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	if i, ok := toInteger(v); ok {
		return i.String(), nil
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return encodeJSON(v, "")
	}

	return fmt.Sprint(v), nil
}
