package ast

import (
	goast "go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// extractString returns the value of a string literal.
func extractString(expr goast.Expr) (string, bool) {
	lit, ok := expr.(*goast.BasicLit)
	if !ok || lit.Kind != token.STRING || len(lit.Value) < 2 {
		return "", false
	}
	if s, err := strconv.Unquote(lit.Value); err == nil {
		return s, true
	}
	return lit.Value[1 : len(lit.Value)-1], true
}

// constString resolves expr to a string when it is a literal or a constant
// expression known to the type checker.
func (r *analysisRun) constString(expr goast.Expr) (string, bool) {
	if s, ok := extractString(expr); ok {
		return s, true
	}
	if r.info == nil {
		return "", false
	}
	if tv, ok := r.info.Types[expr]; ok && tv.Value != nil && tv.Value.Kind() == constant.String {
		return constant.StringVal(tv.Value), true
	}
	if ident, ok := expr.(*goast.Ident); ok {
		if c, ok := r.info.ObjectOf(ident).(*types.Const); ok && c.Val().Kind() == constant.String {
			return constant.StringVal(c.Val()), true
		}
	}
	return "", false
}

// typeOf returns the checked type of expr, or nil when unknown.
func (r *analysisRun) typeOf(expr goast.Expr) types.Type {
	if r.info == nil || expr == nil {
		return nil
	}
	return r.info.TypeOf(expr)
}

// isFuncMap matches html/template.FuncMap and text/template.FuncMap.
func isFuncMap(t types.Type) bool {
	if t == nil {
		return false
	}
	return strings.HasSuffix(t.String(), "template.FuncMap")
}

// isDataMapLiteral reports a string-keyed map literal whose values are
// interfaces: the shape of render data containers such as map[string]any
// or rex.Map. Without type information any literal whose keys are all
// string literals qualifies.
func (r *analysisRun) isDataMapLiteral(comp *goast.CompositeLit) bool {
	if t := r.typeOf(comp); t != nil {
		if isFuncMap(t) {
			return false
		}
		keyType, elemType := getMapTypes(t)
		if keyType == nil {
			return false
		}
		basic, ok := keyType.Underlying().(*types.Basic)
		return ok && basic.Info()&types.IsString != 0 && types.IsInterface(elemType)
	}

	if len(comp.Elts) == 0 {
		_, isMap := comp.Type.(*goast.MapType)
		return isMap
	}
	for _, elt := range comp.Elts {
		kv, ok := elt.(*goast.KeyValueExpr)
		if !ok {
			return false
		}
		if _, ok := extractString(kv.Key); !ok {
			return false
		}
	}
	return true
}
