package ast

import (
	goast "go/ast"
	"go/token"
	"maps"
	"slices"
)

// maxStringAssignments caps the literals remembered per identifier, so a
// variable assigned in a loop or a long switch cannot grow without bound.
const maxStringAssignments = 8

// symbolTable is the local knowledge of one scope: string constants assigned
// to identifiers and the string-keyed data maps built up in it.
type symbolTable struct {
	strings  map[string][]string
	maps     map[string]*goast.CompositeLit
	funcMaps map[string]bool // identifiers holding a template.FuncMap

	inherited map[string]bool // names copied from an enclosing scope
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		strings:  make(map[string][]string, 8),
		maps:     make(map[string]*goast.CompositeLit, 4),
		funcMaps: make(map[string]bool, 2),
	}
}

// inherit returns a copy for a nested function literal. Closures see the
// enclosing assignments; nothing recorded in the copy flows back out.
func (st *symbolTable) inherit() *symbolTable {
	child := &symbolTable{
		strings:   make(map[string][]string, len(st.strings)),
		maps:      maps.Clone(st.maps),
		funcMaps:  maps.Clone(st.funcMaps),
		inherited: make(map[string]bool, len(st.strings)+len(st.maps)+len(st.funcMaps)),
	}
	for name, vals := range st.strings {
		child.strings[name] = slices.Clone(vals)
		child.inherited[name] = true
	}
	for name := range st.maps {
		child.inherited[name] = true
	}
	for name := range st.funcMaps {
		child.inherited[name] = true
	}
	return child
}

// shadow forgets what an enclosing scope knew about name once the literal
// declares its own variable of that name.
func (st *symbolTable) shadow(name string) {
	if !st.inherited[name] {
		return
	}
	delete(st.inherited, name)
	delete(st.strings, name)
	delete(st.maps, name)
	delete(st.funcMaps, name)
}

func (st *symbolTable) addString(name, val string) {
	vals := st.strings[name]
	if len(vals) >= maxStringAssignments || slices.Contains(vals, val) {
		return
	}
	st.strings[name] = append(vals, val)
}

// processScope analyzes one scope node in two passes and appends the
// resulting scopes to out: first its own, if informative, then those of
// the function literals nested in it.
//
// Pass 1 records assignments into syms. Pass 2 detects render calls, set
// calls and func maps. Neither pass descends into nested function literals;
// each literal is processed afterwards with an inherited symbol table.
func (r *analysisRun) processScope(n goast.Node, syms *symbolTable, out []FuncScope) []FuncScope {
	scope := FuncScope{pos: n.Pos()}

	r.collectAssignments(n, syms)
	nested := r.findTemplateOperations(n, syms, &scope)

	if scope.informative() {
		scope.MapAssignments = syms.maps
		out = append(out, scope)
	}

	for _, lit := range nested {
		out = r.processScope(lit, syms.inherit(), out)
	}

	return out
}

// collectAssignments is pass 1.
func (r *analysisRun) collectAssignments(n goast.Node, syms *symbolTable) {
	goast.Inspect(n, func(child goast.Node) bool {
		if child != n {
			if _, isLit := child.(*goast.FuncLit); isLit {
				return false
			}
		}

		switch node := child.(type) {
		case *goast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if ident, ok := lhs.(*goast.Ident); ok {
						syms.shadow(ident.Name)
					}
				}
			}
			if len(node.Lhs) != len(node.Rhs) {
				return true
			}
			for i, lhs := range node.Lhs {
				switch l := lhs.(type) {
				case *goast.Ident:
					r.recordValue(syms, l, node.Rhs[i])
				case *goast.IndexExpr:
					r.recordIndexAssign(syms, l, node.Rhs[i])
				}
			}

		case *goast.ValueSpec:
			for i, name := range node.Names {
				syms.shadow(name.Name)
				if i < len(node.Values) {
					r.recordValue(syms, name, node.Values[i])
				} else if isFuncMap(r.typeOf(name)) {
					syms.funcMaps[name.Name] = true
				}
			}
		}

		return true
	})
}

// recordValue notes what a plain identifier is assigned.
func (r *analysisRun) recordValue(syms *symbolTable, ident *goast.Ident, rhs goast.Expr) {
	if ident.Name == "_" {
		return
	}

	if s, ok := r.constString(rhs); ok {
		syms.addString(ident.Name, s)
		return
	}

	if isFuncMap(r.typeOf(ident)) || isFuncMap(r.typeOf(rhs)) {
		syms.funcMaps[ident.Name] = true
		return
	}

	if comp, ok := rhs.(*goast.CompositeLit); ok && r.isDataMapLiteral(comp) {
		syms.maps[ident.Name] = comp
	}
}

// recordIndexAssign folds data["key"] = value into the tracked literal for
// data, so later lookups see every key set so far. A repeated key replaces
// the earlier value.
func (r *analysisRun) recordIndexAssign(syms *symbolTable, idx *goast.IndexExpr, rhs goast.Expr) {
	ident, ok := idx.X.(*goast.Ident)
	if !ok {
		return
	}
	base, tracked := syms.maps[ident.Name]
	if !tracked {
		return
	}
	key, ok := r.constString(idx.Index)
	if !ok {
		return
	}

	elts := make([]goast.Expr, 0, len(base.Elts)+1)
	for _, elt := range base.Elts {
		if kv, ok := elt.(*goast.KeyValueExpr); ok {
			if existing, ok := r.constString(kv.Key); ok && existing == key {
				continue
			}
		}
		elts = append(elts, elt)
	}
	elts = append(elts, &goast.KeyValueExpr{
		Key:   idx.Index,
		Colon: idx.Index.End(),
		Value: rhs,
	})

	syms.maps[ident.Name] = &goast.CompositeLit{
		Type:   base.Type,
		Lbrace: base.Lbrace,
		Elts:   elts,
		Rbrace: base.Rbrace,
	}
}

// findTemplateOperations is pass 2. It returns the function literals found
// directly inside n.
func (r *analysisRun) findTemplateOperations(n goast.Node, syms *symbolTable, scope *FuncScope) []*goast.FuncLit {
	var nested []*goast.FuncLit
	captured := make(map[*goast.CompositeLit]bool)

	goast.Inspect(n, func(child goast.Node) bool {
		if child != n {
			if lit, isLit := child.(*goast.FuncLit); isLit {
				nested = append(nested, lit)
				return false
			}
		}

		switch node := child.(type) {
		case *goast.AssignStmt:
			r.funcMapsFromAssign(node, syms, scope, captured)

		case *goast.ValueSpec:
			r.funcMapsFromValueSpec(node, scope, captured)

		case *goast.CompositeLit:
			// Inline literal, e.g. template.New("").Funcs(template.FuncMap{...})
			if !captured[node] && isFuncMap(r.typeOf(node)) {
				captured[node] = true
				scope.FuncMaps = append(scope.FuncMaps, r.extractFuncMaps(node)...)
			}

		case *goast.CallExpr:
			r.processCallExpr(node, syms, scope)
		}

		return true
	})

	return nested
}

// processCallExpr classifies a call as a render call or a set call.
func (r *analysisRun) processCallExpr(call *goast.CallExpr, syms *symbolTable, scope *FuncScope) {
	if r.isRenderCall(call) {
		if resolved := r.resolveRenderCall(call, syms); resolved != nil {
			scope.RenderNodes = append(scope.RenderNodes, *resolved)
		}
		return
	}

	if setVar := r.extractSetCallVar(call); setVar != nil {
		scope.SetVars = append(scope.SetVars, *setVar)
	}
}
