package ast

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/types/typeutil"
)

// MethodTypeStr marks FieldInfo entries that describe methods.
const MethodTypeStr = "method"

// fieldExtractor expands types into field trees. One extractor serves a whole
// run and is shared by all workers; only the cache and the method-set cache
// are written after construction, both under their own locks.
//
// Recursion handling:
//   - seen holds the type keys on the current path; a key is removed again
//     once its subtree is done, so siblings never suppress each other
//   - slice and map element branches run on a pooled copy of seen
//   - depth is capped at maxDepth independently of cycle detection
type fieldExtractor struct {
	index    map[string]structIndexEntry
	cache    *fieldCache
	seenPool *seenSetPool
	msets    typeutil.MethodSetCache
	fset     *token.FileSet
	maxDepth int
}

func newFieldExtractor(index map[string]structIndexEntry, fset *token.FileSet, maxDepth int) *fieldExtractor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &fieldExtractor{
		index:    index,
		cache:    newFieldCache(),
		seenPool: newSeenSetPool(),
		fset:     fset,
		maxDepth: maxDepth,
	}
}

// subtree summarizes one expansion for the cache: how many levels of named
// types it spans and whether a cycle or the depth cap pruned any part of it.
type subtree struct {
	height int
	pruned bool
}

func (s *subtree) add(child subtree) {
	s.height = max(s.height, child.height+1)
	s.pruned = s.pruned || child.pruned
}

// expand returns the exported fields and methods of t and the doc of its
// named type. Pointers and map values are unwrapped first; anything that is
// not a named type yields no fields.
//
// A pruned tree depends on the path it was reached through, so only
// complete trees are cached, and a cached tree is served only where it
// still fits under the depth cap.
func (fe *fieldExtractor) expand(t types.Type, seen seenSet, depth int) ([]FieldInfo, string, subtree) {
	named := namedOf(unwrapType(t))
	if named == nil {
		return nil, "", subtree{}
	}

	if depth >= fe.maxDepth {
		return nil, "", subtree{pruned: true}
	}

	// Type arguments are part of the key: Page[User] and Page[Post] differ.
	key := named.String()
	if seen.has(key) {
		return nil, "", subtree{pruned: true}
	}
	seen.mark(key)
	defer seen.unmark(key)

	if c, ok := fe.cache.get(key); ok && depth+c.height <= fe.maxDepth {
		return c.fields, c.doc, subtree{height: c.height}
	}

	fields, doc, sub := fe.expandNamed(named, seen, depth)
	if sub.pruned {
		return fields, doc, sub
	}
	c := fe.cache.set(key, cachedFields{fields: fields, doc: doc, height: sub.height})
	return c.fields, c.doc, sub
}

// expandBranch expands t on an independent copy of seen.
func (fe *fieldExtractor) expandBranch(t types.Type, seen seenSet, depth int) ([]FieldInfo, string, subtree) {
	branch := fe.seenPool.branch(seen)
	defer fe.seenPool.release(branch)
	return fe.expand(t, branch, depth)
}

func (fe *fieldExtractor) expandNamed(named *types.Named, seen seenSet, depth int) ([]FieldInfo, string, subtree) {
	entry := fe.index[indexKey(named)]
	sub := subtree{height: 1}

	strct, ok := named.Underlying().(*types.Struct)
	if !ok {
		// Interfaces and other named types expose methods only.
		return fe.methodFields(named, entry), entry.doc, sub
	}

	fields := fe.structFields(strct, entry, seen, depth, &sub)
	fields = append(fields, fe.methodFields(named, entry)...)
	return fields, entry.doc, sub
}

// structFields builds the exported fields of strct. Fields of embedded
// structs are promoted to this level unless a direct field shadows them.
func (fe *fieldExtractor) structFields(strct *types.Struct, entry structIndexEntry, seen seenSet, depth int, sub *subtree) []FieldInfo {
	fields := make([]FieldInfo, 0, strct.NumFields())
	names := make(map[string]bool, strct.NumFields())
	var embedded []FieldInfo

	for i := range strct.NumFields() {
		field := strct.Field(i)
		if !field.Exported() && !field.Embedded() {
			continue
		}

		fi, child := fe.buildField(field, entry, seen, depth)
		sub.add(child)
		if field.Embedded() && !fi.IsSlice && !fi.IsMap {
			embedded = append(embedded, fi)
		}
		if field.Exported() {
			fields = append(fields, fi)
			names[fi.Name] = true
		}
	}

	for _, emb := range embedded {
		for _, promoted := range emb.Fields {
			if promoted.TypeStr == MethodTypeStr || names[promoted.Name] {
				continue
			}
			names[promoted.Name] = true
			fields = append(fields, promoted)
		}
	}

	return fields
}

// buildField describes one struct field and expands its type.
func (fe *fieldExtractor) buildField(field *types.Var, entry structIndexEntry, seen seenSet, depth int) (FieldInfo, subtree) {
	fi := FieldInfo{
		Name:    field.Name(),
		TypeStr: normalizeTypeStr(field.Type()),
	}
	fi.DefFile, fi.DefLine, fi.DefCol = fe.position(field.Pos())

	ft := derefType(field.Type())

	var sub subtree
	if elem := getElementType(ft); elem != nil {
		fi.IsSlice = true
		fi.ElemType = normalizeTypeStr(elem)
		fi.Fields, _, sub = fe.expandBranch(elem, seen, depth+1)
	} else if keyType, elemType := getMapTypes(ft); keyType != nil && elemType != nil {
		fi.IsMap = true
		fi.KeyType = normalizeTypeStr(keyType)
		fi.ElemType = normalizeTypeStr(elemType)
		fi.Fields, _, sub = fe.expandBranch(elemType, seen, depth+1)
	} else {
		fi.Fields, _, sub = fe.expand(ft, seen, depth+1)
	}

	if pos, ok := entry.fields[field.Name()]; ok {
		if fi.DefFile == "" {
			fi.DefFile, fi.DefLine, fi.DefCol = pos.file, pos.line, pos.col
		}
		fi.Doc = pos.doc
	}

	return fi, sub
}

// methodFields lists the exported methods callable on a value of named,
// including pointer-receiver and promoted methods. For interfaces this is
// the full interface method set.
func (fe *fieldExtractor) methodFields(named *types.Named, entry structIndexEntry) []FieldInfo {
	selections := typeutil.IntuitiveMethodSet(named, &fe.msets)
	fields := make([]FieldInfo, 0, len(selections))

	for _, sel := range selections {
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}

		fi := FieldInfo{
			Name:    fn.Name(),
			TypeStr: MethodTypeStr,
		}
		if sig, ok := fn.Type().(*types.Signature); ok {
			fi.Params, fi.Returns = extractSignatureInfo(sig)
		}
		fi.DefFile, fi.DefLine, fi.DefCol = fe.position(fn.Pos())

		if pos, ok := fe.methodOwner(fn, entry).fields[fn.Name()]; ok {
			if fi.DefFile == "" {
				fi.DefFile, fi.DefLine, fi.DefCol = pos.file, pos.line, pos.col
			}
			fi.Doc = pos.doc
		}

		fields = append(fields, fi)
	}

	return fields
}

// methodOwner returns the index entry of the type that declares fn, which
// differs from the enclosing entry for promoted methods.
func (fe *fieldExtractor) methodOwner(fn *types.Func, fallback structIndexEntry) structIndexEntry {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return fallback
	}
	owner := namedOf(derefType(sig.Recv().Type()))
	if owner == nil {
		return fallback
	}
	if entry, ok := fe.index[indexKey(owner)]; ok {
		return entry
	}
	return fallback
}

// describe builds the TemplateVar for a top-level value of type t. Every
// call starts from a fresh seen set so that two variables of the same type
// are each expanded in full.
func (fe *fieldExtractor) describe(name string, t types.Type) TemplateVar {
	tv := TemplateVar{
		Name:    name,
		TypeStr: normalizeTypeStr(t),
	}

	seen := fe.seenPool.acquire()
	defer fe.seenPool.release(seen)

	if elem := getElementType(t); elem != nil {
		tv.IsSlice = true
		tv.ElemType = normalizeTypeStr(elem)
		tv.Fields, tv.Doc, _ = fe.expand(elem, seen, 0)
	} else if keyType, elemType := getMapTypes(t); keyType != nil && elemType != nil {
		tv.IsMap = true
		tv.KeyType = normalizeTypeStr(keyType)
		tv.ElemType = normalizeTypeStr(elemType)
		tv.Fields, tv.Doc, _ = fe.expand(elemType, seen, 0)
	} else {
		tv.Fields, tv.Doc, _ = fe.expand(t, seen, 0)
	}

	if tv.Doc == "" {
		tv.Doc = fe.typeDoc(t)
	}
	return tv
}

// typeDoc returns the indexed doc of t's own named type, if any.
func (fe *fieldExtractor) typeDoc(t types.Type) string {
	if named := namedOf(derefType(t)); named != nil {
		return fe.index[indexKey(named)].doc
	}
	return ""
}

func (fe *fieldExtractor) position(pos token.Pos) (string, int, int) {
	if !pos.IsValid() || fe.fset == nil {
		return "", 0, 0
	}
	p := fe.fset.Position(pos)
	return p.Filename, p.Line, p.Column
}
