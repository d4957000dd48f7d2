package ast

import (
	"encoding/json"
	"fmt"
	"go/types"
	"maps"
	"os"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

// contextFileMarker is the File of render calls that exist only in the
// context file.
const contextFileMarker = "context-file"

// enrichRenderCallsWithContext adds the variables declared in a JSON context
// file to the render calls, ahead of the variables found in code. Templates
// that appear only in the context file get a synthetic entry.
//
// Context file format:
//
//	{
//	  "global": {"currentUser": "User"},
//	  "index.html": {"posts": "[]Post", "byID": "map[int]*models.Post"}
//	}
//
// The global entry (see AnalysisConfig.GlobalTemplateName) applies to every
// template.
func (r *analysisRun) enrichRenderCallsWithContext(calls []RenderCall, contextFile string, pkgs []*packages.Package) ([]RenderCall, error) {
	data, err := os.ReadFile(contextFile)
	if err != nil {
		return calls, fmt.Errorf("read %s: %w", contextFile, err)
	}

	var contextConfig map[string]map[string]string
	if err := json.Unmarshal(data, &contextConfig); err != nil {
		return calls, fmt.Errorf("parse %s: %w", contextFile, err)
	}

	lookup := newTypeLookup(pkgs)
	globalVars := r.buildContextVars(contextConfig[r.config.GlobalTemplateName], lookup)

	seenTpls := make(map[string]bool, len(calls))
	for i, call := range calls {
		seenTpls[call.Template] = true

		vars := make([]TemplateVar, 0, len(globalVars)+len(call.Vars)+8)
		vars = append(vars, globalVars...)
		if tplVars, ok := contextConfig[call.Template]; ok {
			vars = append(vars, r.buildContextVars(tplVars, lookup)...)
		}
		vars = append(vars, call.Vars...)
		calls[i].Vars = vars
	}

	for _, tplName := range sortedKeys(contextConfig) {
		if tplName == r.config.GlobalTemplateName || seenTpls[tplName] {
			continue
		}

		vars := make([]TemplateVar, 0, len(globalVars)+len(contextConfig[tplName]))
		vars = append(vars, globalVars...)
		vars = append(vars, r.buildContextVars(contextConfig[tplName], lookup)...)

		calls = append(calls, RenderCall{
			File:     contextFileMarker,
			Line:     1,
			Template: tplName,
			Vars:     vars,
		})
	}

	return calls, nil
}

// buildContextVars describes the declared variables of one template entry,
// in name order.
func (r *analysisRun) buildContextVars(varDefs map[string]string, lookup *typeLookup) []TemplateVar {
	vars := make([]TemplateVar, 0, len(varDefs))

	for _, name := range sortedKeys(varDefs) {
		typeStr := varDefs[name]

		t, obj := lookup.resolve(typeStr)
		if t == nil {
			vars = append(vars, unresolvedVar(name, typeStr))
			continue
		}

		tv := r.fields.describe(name, t)
		tv.TypeStr = strings.TrimSpace(typeStr)
		if obj != nil {
			tv.DefFile, tv.DefLine, tv.DefCol = r.fields.position(obj.Pos())
		}
		vars = append(vars, tv)
	}

	return vars
}

// unresolvedVar keeps the declared shape of a type string that names no
// loaded type.
func unresolvedVar(name, typeStr string) TemplateVar {
	tv := TemplateVar{Name: name, TypeStr: strings.TrimSpace(typeStr)}

	base, isSlice := parseTypeString(typeStr)
	if key, elem, ok := splitMapType(base); ok {
		tv.IsMap = true
		tv.KeyType = key
		tv.ElemType = elem
		return tv
	}
	if isSlice {
		tv.IsSlice = true
		tv.ElemType = base
	}
	return tv
}

// typeLookup resolves the type names used in context files against the
// loaded packages and everything they import.
type typeLookup struct {
	qualified map[string]*types.TypeName   // "pkgname.Type"
	bare      map[string][]*types.TypeName // "Type"
}

func newTypeLookup(pkgs []*packages.Package) *typeLookup {
	tl := &typeLookup{
		qualified: make(map[string]*types.TypeName, len(pkgs)*32),
		bare:      make(map[string][]*types.TypeName, len(pkgs)*32),
	}

	visited := make(map[*types.Package]bool, len(pkgs)*8)
	queue := make([]*types.Package, 0, len(pkgs)*8)
	for _, p := range pkgs {
		if p.Types != nil && !visited[p.Types] {
			visited[p.Types] = true
			queue = append(queue, p.Types)
		}
	}

	// Imported packages come from export data and list their own imports,
	// so the walk covers the whole import graph.
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		scope := p.Scope()
		for _, name := range scope.Names() {
			typeName, ok := scope.Lookup(name).(*types.TypeName)
			if !ok {
				continue
			}
			tl.qualified[p.Name()+"."+name] = typeName
			tl.bare[name] = append(tl.bare[name], typeName)
		}

		for _, imp := range p.Imports() {
			if !visited[imp] {
				visited[imp] = true
				queue = append(queue, imp)
			}
		}
	}

	return tl
}

// lookupName finds a declared type by "pkg.Type", or by bare "Type" when
// exactly one loaded package declares it.
func (tl *typeLookup) lookupName(name string) *types.TypeName {
	if obj, ok := tl.qualified[name]; ok {
		return obj
	}
	if candidates := tl.bare[name]; len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

// resolve turns a type string such as "[]*models.User" or "map[string]Post"
// into a type. It also returns the declared type name the string ends in,
// if any. An unknown name anywhere in the string resolves to nil.
func (tl *typeLookup) resolve(typeStr string) (types.Type, *types.TypeName) {
	s := strings.TrimSpace(typeStr)

	switch {
	case s == "":
		return nil, nil

	case strings.HasPrefix(s, "[]"):
		elem, obj := tl.resolve(s[2:])
		if elem == nil {
			return nil, nil
		}
		return types.NewSlice(elem), obj

	case strings.HasPrefix(s, "*"):
		elem, obj := tl.resolve(s[1:])
		if elem == nil {
			return nil, nil
		}
		return types.NewPointer(elem), obj

	case strings.HasPrefix(s, "map["):
		keyStr, elemStr, ok := splitMapType(s)
		if !ok {
			return nil, nil
		}
		key, _ := tl.resolve(keyStr)
		elem, obj := tl.resolve(elemStr)
		if key == nil || elem == nil {
			return nil, nil
		}
		return types.NewMap(key, elem), obj
	}

	if s == "any" || s == "interface{}" {
		return types.Universe.Lookup("any").Type(), nil
	}
	if obj, ok := types.Universe.Lookup(s).(*types.TypeName); ok {
		return obj.Type(), nil
	}
	if obj := tl.lookupName(s); obj != nil {
		return obj.Type(), obj
	}
	return nil, nil
}

// splitMapType splits "map[K]V" into K and V, honoring nested brackets in K.
func splitMapType(s string) (key, elem string, ok bool) {
	if !strings.HasPrefix(s, "map[") {
		return "", "", false
	}
	depth := 1
	for i := 4; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[4:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
