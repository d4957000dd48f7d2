package ast

import (
	goast "go/ast"
	"slices"

	"golang.org/x/tools/go/types/typeutil"
)

// resolveRenderCall finds the template name argument of a render call and
// resolves it to one or more names. Names come from, in order:
//  1. string literals: c.Render("index.html", data)
//  2. constants and constant expressions: c.Render(IndexTpl, data)
//  3. local string assignments: tpl := "index.html"; c.Render(tpl, data)
//
// A variable assigned different literals on different branches resolves to
// all of them.
func (r *analysisRun) resolveRenderCall(call *goast.CallExpr, syms *symbolTable) *ResolvedRender {
	for _, idx := range candidateTemplateArgs(call) {
		if names := r.resolveTemplateName(call.Args[idx], syms); len(names) > 0 {
			return &ResolvedRender{
				Node:           call,
				TemplateNames:  names,
				TemplateArgIdx: idx,
			}
		}
	}
	return nil
}

// candidateTemplateArgs lists argument indexes in the order they are tried.
// Method calls such as c.Render(name, data) put the name first; function
// calls such as Render(w, name, data) or tmpl.ExecuteTemplate(w, name, data)
// put it at the first string-valued argument.
func candidateTemplateArgs(call *goast.CallExpr) []int {
	order := make([]int, 0, len(call.Args))
	if _, isMethod := call.Fun.(*goast.SelectorExpr); isMethod {
		order = append(order, 0)
	}
	for i := range call.Args {
		if !slices.Contains(order, i) {
			order = append(order, i)
		}
	}
	return order
}

func (r *analysisRun) resolveTemplateName(arg goast.Expr, syms *symbolTable) []string {
	if s, ok := r.constString(arg); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	ident, ok := arg.(*goast.Ident)
	if !ok {
		return nil
	}
	return syms.strings[ident.Name]
}

// isRenderCall matches calls to the configured render function names with
// at least a template name and a data argument.
func (r *analysisRun) isRenderCall(call *goast.CallExpr) bool {
	if len(call.Args) < 2 {
		return false
	}
	name := r.calleeName(call)
	if name == "" {
		return false
	}
	return name == r.config.RenderFunctionName ||
		(r.config.ExecuteTemplateFunctionName != "" && name == r.config.ExecuteTemplateFunctionName)
}

// calleeName returns the name of the called function or method, using the
// type checker when it knows the callee and the call syntax otherwise.
func (r *analysisRun) calleeName(call *goast.CallExpr) string {
	if r.info != nil {
		if obj := typeutil.Callee(r.info, call); obj != nil {
			return obj.Name()
		}
	}

	switch fn := goast.Unparen(call.Fun).(type) {
	case *goast.SelectorExpr:
		return fn.Sel.Name
	case *goast.Ident:
		return fn.Name
	}
	return ""
}
