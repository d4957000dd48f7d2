package ast

import (
	goast "go/ast"
	"go/token"
	"go/types"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// buildStructIndex extracts doc and position metadata for every declared
// struct and interface type, keyed like indexKey: "pkgpath.TypeName".
//
// Pass 1 scans type declarations on one worker per CPU, writing into a
// sync.Map; the sink is copied into a plain map once all workers are done.
// Pass 2 walks the files sequentially to attach method docs, and also
// returns top-level function docs keyed by the position of the function
// name, which func map resolution looks up.
func buildStructIndex(fset *token.FileSet, info *types.Info, files []*goast.File) (map[string]structIndexEntry, map[token.Pos]string) {
	numWorkers := max(runtime.NumCPU(), 1)
	fileChan := make(chan *goast.File, len(files))

	var sink sync.Map
	var g errgroup.Group

	for range numWorkers {
		g.Go(func() error {
			for f := range fileChan {
				indexFileTypes(f, fset, info, &sink)
			}
			return nil
		})
	}

	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)
	_ = g.Wait() // workers never fail; malformed declarations are skipped

	index := drainSink(&sink, len(files))
	funcDocs := attachMethodDocs(files, fset, info, index)

	return index, funcDocs
}

// indexFileTypes records every struct and interface declaration in f.
func indexFileTypes(f *goast.File, fset *token.FileSet, info *types.Info, sink *sync.Map) {
	if f == nil || f.Name == nil {
		return
	}
	pkgName := f.Name.Name

	goast.Inspect(f, func(n goast.Node) bool {
		genDecl, ok := n.(*goast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			return true
		}

		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*goast.TypeSpec)
			if !ok || typeSpec.Name == nil {
				continue
			}

			var members *goast.FieldList
			switch t := typeSpec.Type.(type) {
			case *goast.StructType:
				members = t.Fields
			case *goast.InterfaceType:
				members = t.Methods
			default:
				continue
			}

			entry := structIndexEntry{
				doc:    declDoc(genDecl, typeSpec),
				fields: make(map[string]fieldPos),
			}
			if members != nil {
				for _, field := range members.List {
					recordMember(entry.fields, field, fset)
				}
			}

			sink.Store(declKey(info, pkgName, typeSpec.Name), entry)
		}

		return true
	})
}

// recordMember adds a field or interface method. Embedded members are
// recorded under their type name, which is also their field name.
func recordMember(fields map[string]fieldPos, field *goast.Field, fset *token.FileSet) {
	doc := fieldDoc(field)

	if len(field.Names) == 0 {
		if name := embeddedName(field.Type); name != "" {
			pos := fset.Position(field.Type.Pos())
			fields[name] = fieldPos{file: pos.Filename, line: pos.Line, col: pos.Column, doc: doc}
		}
		return
	}

	for _, name := range field.Names {
		pos := fset.Position(name.Pos())
		fields[name.Name] = fieldPos{file: pos.Filename, line: pos.Line, col: pos.Column, doc: doc}
	}
}

// embeddedName returns the field name of an embedded type expression:
// T, *T, pkg.T, T[A] all embed as "T".
func embeddedName(expr goast.Expr) string {
	switch e := expr.(type) {
	case *goast.Ident:
		return e.Name
	case *goast.StarExpr:
		return embeddedName(e.X)
	case *goast.SelectorExpr:
		return e.Sel.Name
	case *goast.IndexExpr:
		return embeddedName(e.X)
	case *goast.IndexListExpr:
		return embeddedName(e.X)
	}
	return ""
}

func drainSink(sink *sync.Map, estimatedSize int) map[string]structIndexEntry {
	index := make(map[string]structIndexEntry, estimatedSize*4)
	sink.Range(func(k, v any) bool {
		index[k.(string)] = v.(structIndexEntry)
		return true
	})
	return index
}

// attachMethodDocs records documented methods on their receiver's entry and
// collects docs of plain functions.
func attachMethodDocs(files []*goast.File, fset *token.FileSet, info *types.Info, index map[string]structIndexEntry) map[token.Pos]string {
	funcDocs := make(map[token.Pos]string, len(files)*4)

	for _, f := range files {
		if f == nil || f.Name == nil {
			continue
		}
		pkgName := f.Name.Name

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*goast.FuncDecl)
			if !ok || funcDecl.Doc == nil {
				continue
			}
			doc := funcDecl.Doc.Text()

			if funcDecl.Recv == nil || len(funcDecl.Recv.List) == 0 {
				funcDocs[funcDecl.Name.Pos()] = strings.TrimSpace(doc)
				continue
			}

			key := receiverKey(info, pkgName, funcDecl)
			if key == "" {
				continue
			}

			entry, exists := index[key]
			if !exists {
				continue
			}

			pos := fset.Position(funcDecl.Name.Pos())
			entry.fields[funcDecl.Name.Name] = fieldPos{
				file: pos.Filename,
				line: pos.Line,
				col:  pos.Column,
				doc:  doc,
			}
		}
	}

	return funcDocs
}

// declKey returns the index key of the type declared by ident. Without type
// information the package clause name stands in for the package path.
func declKey(info *types.Info, pkgName string, ident *goast.Ident) string {
	if info != nil {
		if obj, ok := info.Defs[ident].(*types.TypeName); ok && obj.Pkg() != nil {
			return obj.Pkg().Path() + "." + obj.Name()
		}
	}
	return pkgName + "." + ident.Name
}

// receiverKey returns the index key of a method's receiver base type.
func receiverKey(info *types.Info, pkgName string, funcDecl *goast.FuncDecl) string {
	if info != nil {
		if fn, ok := info.Defs[funcDecl.Name].(*types.Func); ok {
			if recv := fn.Signature().Recv(); recv != nil {
				if named := namedOf(derefType(recv.Type())); named != nil {
					return indexKey(named)
				}
			}
		}
	}

	recvName := receiverTypeName(funcDecl.Recv.List[0].Type)
	if recvName == "" {
		return ""
	}
	return pkgName + "." + recvName
}

// receiverTypeName returns the base type name of a receiver expression,
// including generic receivers such as *Page[T].
func receiverTypeName(expr goast.Expr) string {
	if star, ok := expr.(*goast.StarExpr); ok {
		expr = star.X
	}

	switch rt := expr.(type) {
	case *goast.Ident:
		return rt.Name
	case *goast.IndexExpr:
		if ident, ok := rt.X.(*goast.Ident); ok {
			return ident.Name
		}
	case *goast.IndexListExpr:
		if ident, ok := rt.X.(*goast.Ident); ok {
			return ident.Name
		}
	}
	return ""
}

// declDoc prefers the TypeSpec's own doc; the GenDecl doc applies only to
// ungrouped declarations.
func declDoc(genDecl *goast.GenDecl, typeSpec *goast.TypeSpec) string {
	if typeSpec.Doc != nil {
		return typeSpec.Doc.Text()
	}
	if genDecl.Doc != nil && !genDecl.Lparen.IsValid() {
		return genDecl.Doc.Text()
	}
	if typeSpec.Comment != nil {
		return typeSpec.Comment.Text()
	}
	return ""
}

func fieldDoc(field *goast.Field) string {
	if field.Doc != nil {
		return field.Doc.Text()
	}
	if field.Comment != nil {
		return field.Comment.Text()
	}
	return ""
}
