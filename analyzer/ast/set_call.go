package ast

import (
	goast "go/ast"
	"go/types"

	"golang.org/x/tools/go/types/typeutil"
)

// extractSetCallVar extracts the template variable set by a call such as
//
//	c.Set("user", user)
//
// The call must be the configured set method on the configured context type
// and its key must resolve to a string.
func (r *analysisRun) extractSetCallVar(call *goast.CallExpr) *TemplateVar {
	sel, ok := goast.Unparen(call.Fun).(*goast.SelectorExpr)
	if !ok || sel.Sel.Name != r.config.SetFunctionName || len(call.Args) < 2 {
		return nil
	}
	if !r.isContextReceiver(call, sel) {
		return nil
	}

	key, ok := r.constString(call.Args[0])
	if !ok || key == "" {
		return nil
	}

	tv := r.describeExpr(key, call.Args[1])
	return &tv
}

// isContextReceiver checks the receiver of a set call against the configured
// context type name, ignoring pointers and the declaring package.
func (r *analysisRun) isContextReceiver(call *goast.CallExpr, sel *goast.SelectorExpr) bool {
	if r.info == nil {
		return false
	}

	var recv types.Type
	if fn, ok := typeutil.Callee(r.info, call).(*types.Func); ok {
		if sig, ok := fn.Type().(*types.Signature); ok && sig.Recv() != nil {
			recv = sig.Recv().Type()
		}
	}
	if recv == nil {
		recv = r.typeOf(sel.X)
	}
	if recv == nil {
		return false
	}

	named := namedOf(derefType(recv))
	return named != nil && named.Obj().Name() == r.config.ContextTypeName
}
