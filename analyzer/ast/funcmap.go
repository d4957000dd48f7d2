package ast

import (
	goast "go/ast"
	"go/types"
)

// funcMapsFromAssign captures func map entries introduced by an assignment:
//
//	fm := template.FuncMap{"upper": strings.ToUpper}
//	var fm template.FuncMap; fm = map[string]any{"upper": strings.ToUpper}
//	fm["sub"] = func(a, b int) int { return a - b }
func (r *analysisRun) funcMapsFromAssign(assign *goast.AssignStmt, syms *symbolTable, scope *FuncScope, captured map[*goast.CompositeLit]bool) {
	if len(assign.Lhs) != len(assign.Rhs) {
		return
	}

	for i, lhs := range assign.Lhs {
		rhs := assign.Rhs[i]

		switch l := lhs.(type) {
		case *goast.IndexExpr:
			if fm, ok := r.funcMapIndexAssign(l, rhs, syms); ok {
				scope.FuncMaps = append(scope.FuncMaps, fm)
			}

		case *goast.Ident:
			comp, ok := rhs.(*goast.CompositeLit)
			if !ok || captured[comp] {
				continue
			}
			if isFuncMap(r.typeOf(l)) || isFuncMap(r.typeOf(comp)) {
				captured[comp] = true
				scope.FuncMaps = append(scope.FuncMaps, r.extractFuncMaps(comp)...)
			}
		}
	}
}

// funcMapsFromValueSpec captures var declarations typed as a func map, which
// may be initialized with a plain map literal.
func (r *analysisRun) funcMapsFromValueSpec(spec *goast.ValueSpec, scope *FuncScope, captured map[*goast.CompositeLit]bool) {
	for i, name := range spec.Names {
		if i >= len(spec.Values) {
			continue
		}
		comp, ok := spec.Values[i].(*goast.CompositeLit)
		if !ok || captured[comp] {
			continue
		}
		if isFuncMap(r.typeOf(name)) || isFuncMap(r.typeOf(comp)) {
			captured[comp] = true
			scope.FuncMaps = append(scope.FuncMaps, r.extractFuncMaps(comp)...)
		}
	}
}

// funcMapIndexAssign handles fm["name"] = fn on a func map variable.
func (r *analysisRun) funcMapIndexAssign(idx *goast.IndexExpr, rhs goast.Expr, syms *symbolTable) (FuncMapInfo, bool) {
	isTarget := isFuncMap(r.typeOf(idx.X))
	if !isTarget {
		if ident, ok := idx.X.(*goast.Ident); ok {
			isTarget = syms.funcMaps[ident.Name]
		}
	}
	if !isTarget {
		return FuncMapInfo{}, false
	}

	name, ok := r.constString(idx.Index)
	if !ok {
		return FuncMapInfo{}, false
	}
	return r.funcMapEntry(name, rhs), true
}

// extractFuncMaps lists the entries of a func map literal.
func (r *analysisRun) extractFuncMaps(comp *goast.CompositeLit) []FuncMapInfo {
	result := make([]FuncMapInfo, 0, len(comp.Elts))

	for _, elt := range comp.Elts {
		kv, ok := elt.(*goast.KeyValueExpr)
		if !ok {
			continue
		}
		name, ok := r.constString(kv.Key)
		if !ok {
			continue
		}
		result = append(result, r.funcMapEntry(name, kv.Value))
	}

	return result
}

// funcMapEntry describes the function value fn registered under name.
func (r *analysisRun) funcMapEntry(name string, fn goast.Expr) FuncMapInfo {
	entry := FuncMapInfo{Name: name}
	entry.DefFile, entry.DefLine, entry.DefCol = r.funcDefLocation(fn)
	entry.Doc = r.funcDoc(fn)

	if sig := signatureOf(r.typeOf(fn)); sig != nil {
		entry.Params, entry.Returns = extractSignatureInfo(sig)
	}
	return entry
}

// funcObject returns the object a named function value refers to.
func (r *analysisRun) funcObject(expr goast.Expr) types.Object {
	if r.info == nil {
		return nil
	}
	switch e := expr.(type) {
	case *goast.Ident:
		return r.info.ObjectOf(e)
	case *goast.SelectorExpr:
		return r.info.ObjectOf(e.Sel)
	}
	return nil
}

// funcDefLocation resolves a named function to its declaration; literals
// resolve to themselves.
func (r *analysisRun) funcDefLocation(expr goast.Expr) (string, int, int) {
	if r.fset == nil {
		return "", 0, 0
	}
	if obj := r.funcObject(expr); obj != nil && obj.Pos().IsValid() {
		pos := r.fset.Position(obj.Pos())
		return pos.Filename, pos.Line, pos.Column
	}
	pos := r.fset.Position(expr.Pos())
	return pos.Filename, pos.Line, pos.Column
}

// funcDoc returns the doc comment of a named function declared in the
// analyzed packages.
func (r *analysisRun) funcDoc(expr goast.Expr) string {
	obj := r.funcObject(expr)
	if obj == nil || !obj.Pos().IsValid() {
		return ""
	}
	if _, isFunc := obj.(*types.Func); !isFunc {
		return ""
	}
	return r.funcDocs[obj.Pos()]
}

// signatureOf returns t as a function signature, looking through pointers.
func signatureOf(t types.Type) *types.Signature {
	if t == nil {
		return nil
	}
	sig, _ := derefType(t).Underlying().(*types.Signature)
	return sig
}

// extractSignatureInfo lists parameters and results with qualifier-free types.
func extractSignatureInfo(sig *types.Signature) (params, returns []ParamInfo) {
	params = make([]ParamInfo, sig.Params().Len())
	for i := range sig.Params().Len() {
		p := sig.Params().At(i)
		params[i] = ParamInfo{Name: p.Name(), TypeStr: normalizeTypeStr(p.Type())}
	}

	returns = make([]ParamInfo, sig.Results().Len())
	for i := range sig.Results().Len() {
		res := sig.Results().At(i)
		returns[i] = ParamInfo{Name: res.Name(), TypeStr: normalizeTypeStr(res.Type())}
	}

	return params, returns
}
