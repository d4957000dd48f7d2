package ast

import (
	goast "go/ast"
	"go/token"
	"go/types"
	"strings"
)

// indexKey is the struct index key of a named type: "pkgpath.TypeName", or
// just "TypeName" for predeclared types. Type arguments are ignored because
// docs and positions are shared by every instantiation.
func indexKey(named *types.Named) string {
	obj := named.Obj()
	if obj.Pkg() != nil {
		return obj.Pkg().Path() + "." + obj.Name()
	}
	return obj.Name()
}

// normalizeTypeStr renders t without package qualifiers, including inside
// type arguments: "example.com/app.Page[example.com/app.User]" -> "Page[User]".
func normalizeTypeStr(t types.Type) string {
	if t == nil {
		return ""
	}
	return types.TypeString(t, func(*types.Package) string {
		return ""
	})
}

// namedOf returns t as a named type, resolving aliases.
func namedOf(t types.Type) *types.Named {
	if t == nil {
		return nil
	}
	named, _ := types.Unalias(t).(*types.Named)
	return named
}

// derefType strips pointer indirections.
func derefType(t types.Type) types.Type {
	for {
		ptr, ok := types.Unalias(t).(*types.Pointer)
		if !ok {
			return t
		}
		t = ptr.Elem()
	}
}

// getElementType returns the element type of a slice or array, looking
// through pointers and named types.
func getElementType(t types.Type) types.Type {
	switch v := types.Unalias(t).(type) {
	case *types.Slice:
		return v.Elem()
	case *types.Array:
		return v.Elem()
	case *types.Pointer:
		return getElementType(v.Elem())
	case *types.Named:
		return getElementType(v.Underlying())
	}
	return nil
}

// getMapTypes returns the key and value types of a map, looking through
// pointers and named types.
func getMapTypes(t types.Type) (types.Type, types.Type) {
	switch v := types.Unalias(t).(type) {
	case *types.Map:
		return v.Key(), v.Elem()
	case *types.Pointer:
		return getMapTypes(v.Elem())
	case *types.Named:
		return getMapTypes(v.Underlying())
	}
	return nil, nil
}

// unwrapType removes pointer and map-value wrappers.
func unwrapType(t types.Type) types.Type {
	for {
		switch v := types.Unalias(t).(type) {
		case *types.Pointer:
			t = v.Elem()
		case *types.Map:
			t = v.Elem()
		default:
			return t
		}
	}
}

// parseTypeString strips leading "[]" and "*" from a type string.
func parseTypeString(typeStr string) (base string, isSlice bool) {
	base = strings.TrimSpace(typeStr)
	for {
		switch {
		case strings.HasPrefix(base, "[]"):
			isSlice = true
			base = base[2:]
		case strings.HasPrefix(base, "*"):
			base = base[1:]
		default:
			return base, isSlice
		}
	}
}

// findDefinitionLocation resolves where the value of expr is declared.
// Identifiers resolve to their declaration; calls, literals and selectors
// to their own position.
func findDefinitionLocation(expr goast.Expr, info *types.Info, fset *token.FileSet) (string, int, int) {
	if fset == nil || expr == nil {
		return "", 0, 0
	}

	var ident *goast.Ident
	switch e := expr.(type) {
	case *goast.Ident:
		ident = e
	case *goast.UnaryExpr:
		// &v
		ident, _ = e.X.(*goast.Ident)
	case *goast.SelectorExpr:
		pos := fset.Position(e.Sel.Pos())
		return pos.Filename, pos.Line, pos.Column
	}

	if ident != nil && info != nil {
		if obj := info.Defs[ident]; obj != nil {
			pos := fset.Position(obj.Pos())
			return pos.Filename, pos.Line, pos.Column
		}
		if obj := info.Uses[ident]; obj != nil && obj.Pos().IsValid() {
			pos := fset.Position(obj.Pos())
			return pos.Filename, pos.Line, pos.Column
		}
	}

	pos := fset.Position(expr.Pos())
	return pos.Filename, pos.Line, pos.Column
}

// inferTypeFromAST guesses a type from the shape of expr when the type
// checker has nothing for it.
func inferTypeFromAST(expr goast.Expr) string {
	switch e := expr.(type) {
	case *goast.BasicLit:
		switch e.Kind {
		case token.STRING:
			return "string"
		case token.INT:
			return "int"
		case token.FLOAT:
			return "float64"
		case token.CHAR:
			return "rune"
		}
	case *goast.Ident:
		return e.Name
	case *goast.SelectorExpr:
		return types.ExprString(e)
	case *goast.CallExpr:
		if sel, ok := e.Fun.(*goast.SelectorExpr); ok {
			return "call:" + sel.Sel.Name
		}
	case *goast.CompositeLit:
		if e.Type != nil {
			return types.ExprString(e.Type)
		}
	case *goast.UnaryExpr:
		return "unary"
	}
	return "unknown"
}
