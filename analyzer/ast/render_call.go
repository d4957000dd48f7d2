package ast

import (
	"cmp"
	goast "go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"slices"
)

// assembleRenderCalls turns collected scopes into RenderCall entries. Each
// resolved template name of a render node yields one entry whose vars are,
// in order: the vars of the data argument, the set vars of the scope, and
// the global implicit vars.
func (r *analysisRun) assembleRenderCalls(scopes []FuncScope, globals []TemplateVar) []RenderCall {
	total := 0
	for _, scope := range scopes {
		for _, rr := range scope.RenderNodes {
			total += len(rr.TemplateNames)
		}
	}
	calls := make([]RenderCall, 0, total)

	for _, scope := range scopes {
		for _, rr := range scope.RenderNodes {
			call := rr.Node
			if len(rr.TemplateNames) == 0 || rr.TemplateArgIdx < 0 || rr.TemplateArgIdx >= len(call.Args) {
				continue
			}

			nameExpr := call.Args[rr.TemplateArgIdx]
			startCol, endCol := r.exprColumnRange(nameExpr)
			if lit, ok := nameExpr.(*goast.BasicLit); ok && lit.Kind == token.STRING {
				startCol++
				endCol--
			}

			pos := r.fset.Position(call.Pos())
			file := resolveRelativePath(pos.Filename, r.dir)

			var dataArg goast.Expr
			if idx := rr.TemplateArgIdx + 1; idx < len(call.Args) {
				dataArg = call.Args[idx]
			}

			for _, name := range rr.TemplateNames {
				if name == "" {
					continue
				}

				// Vars are rebuilt per name so no two entries share backing arrays.
				local := r.dataVars(dataArg, scope.MapAssignments)
				vars := make([]TemplateVar, 0, len(local)+len(scope.SetVars)+len(globals))
				vars = append(vars, local...)
				vars = append(vars, scope.SetVars...)
				vars = append(vars, globals...)

				calls = append(calls, RenderCall{
					File:                 file,
					Line:                 pos.Line,
					Template:             name,
					TemplateNameStartCol: startCol,
					TemplateNameEndCol:   endCol,
					Vars:                 vars,
				})
			}
		}
	}

	return calls
}

// dataVars extracts the top-level template vars of a render call's data
// argument. It accepts a map literal, an identifier tracked as a data map in
// the scope, or any value of named struct type, whose exported fields and
// methods become the vars.
func (r *analysisRun) dataVars(arg goast.Expr, tracked map[string]*goast.CompositeLit) []TemplateVar {
	if arg == nil {
		return nil
	}
	arg = goast.Unparen(arg)

	if comp, ok := arg.(*goast.CompositeLit); ok && r.isDataMapLiteral(comp) {
		return r.extractMapVars(comp)
	}

	if ident, ok := arg.(*goast.Ident); ok {
		if comp, found := tracked[ident.Name]; found {
			return r.extractMapVars(comp)
		}
	}

	return r.structVars(arg)
}

// extractMapVars describes every string-keyed entry of a data map literal.
func (r *analysisRun) extractMapVars(comp *goast.CompositeLit) []TemplateVar {
	vars := make([]TemplateVar, 0, len(comp.Elts))
	for _, elt := range comp.Elts {
		kv, ok := elt.(*goast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := r.constString(kv.Key)
		if !ok || key == "" {
			continue
		}
		vars = append(vars, r.describeExpr(key, kv.Value))
	}
	return vars
}

// structVars exposes the fields of a struct-typed data value as top-level
// vars, the way html/template resolves {{.Field}} against it.
func (r *analysisRun) structVars(arg goast.Expr) []TemplateVar {
	t := r.typeOf(arg)
	if t == nil {
		return nil
	}
	named := namedOf(derefType(t))
	if named == nil {
		return nil
	}
	if _, isStruct := named.Underlying().(*types.Struct); !isStruct {
		return nil
	}

	fields := r.fields.describe("", t).Fields
	vars := make([]TemplateVar, 0, len(fields))
	for _, f := range fields {
		vars = append(vars, TemplateVar{
			Name:     f.Name,
			TypeStr:  f.TypeStr,
			Fields:   f.Fields,
			IsSlice:  f.IsSlice,
			IsMap:    f.IsMap,
			KeyType:  f.KeyType,
			ElemType: f.ElemType,
			DefFile:  f.DefFile,
			DefLine:  f.DefLine,
			DefCol:   f.DefCol,
			Doc:      f.Doc,
		})
	}
	return vars
}

// describeExpr builds the TemplateVar for a value expression. Values the
// type checker knows are expanded in full; the rest get a type guessed from
// the expression's shape.
func (r *analysisRun) describeExpr(name string, expr goast.Expr) TemplateVar {
	var tv TemplateVar
	if t := r.typeOf(expr); t != nil {
		tv = r.fields.describe(name, t)
	} else {
		tv = TemplateVar{Name: name, TypeStr: inferTypeFromAST(expr)}
	}
	tv.DefFile, tv.DefLine, tv.DefCol = findDefinitionLocation(expr, r.info, r.fset)
	return tv
}

// extractGlobalImplicitVars collects set vars from scopes without any render
// call. They are available to every template.
func extractGlobalImplicitVars(scopes []FuncScope) []TemplateVar {
	var globals []TemplateVar
	for _, scope := range scopes {
		if len(scope.RenderNodes) == 0 && len(scope.SetVars) > 0 {
			globals = append(globals, scope.SetVars...)
		}
	}
	return globals
}

// aggregateFuncMaps merges the func maps of all scopes, keeping the first
// declaration of each name in source order, and sorts the result by name.
func aggregateFuncMaps(scopes []FuncScope) []FuncMapInfo {
	total := 0
	for _, scope := range scopes {
		total += len(scope.FuncMaps)
	}

	seen := make(map[string]bool, total)
	unique := make([]FuncMapInfo, 0, total)
	for _, scope := range scopes {
		for _, fm := range scope.FuncMaps {
			if seen[fm.Name] {
				continue
			}
			seen[fm.Name] = true
			unique = append(unique, fm)
		}
	}

	slices.SortStableFunc(unique, func(a, b FuncMapInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return unique
}

// sortRenderCalls orders calls by file, line and template name.
func sortRenderCalls(calls []RenderCall) {
	slices.SortStableFunc(calls, func(a, b RenderCall) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Template, b.Template),
		)
	})
}

// resolveRelativePath makes absPath relative to baseDir when possible.
func resolveRelativePath(absPath, baseDir string) string {
	if abs, err := filepath.Abs(absPath); err == nil {
		if base, err := filepath.Abs(baseDir); err == nil {
			if rel, err := filepath.Rel(base, abs); err == nil {
				return rel
			}
		}
	}
	return absPath
}

// exprColumnRange returns the start and end columns of expr.
func (r *analysisRun) exprColumnRange(expr goast.Expr) (startCol, endCol int) {
	return r.fset.Position(expr.Pos()).Column, r.fset.Position(expr.End()).Column
}
