package ast

import (
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkedSource is a type-checked single-file package "p".
type checkedSource struct {
	fset  *token.FileSet
	files []*goast.File
	pkg   *types.Package
	info  *types.Info
}

func checkSource(t *testing.T, src string) checkedSource {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{
		Types:      make(map[goast.Expr]types.TypeAndValue),
		Defs:       make(map[*goast.Ident]types.Object),
		Uses:       make(map[*goast.Ident]types.Object),
		Selections: make(map[*goast.SelectorExpr]*types.Selection),
		Instances:  make(map[*goast.Ident]types.Instance),
	}
	pkg, err := (&types.Config{}).Check("p", fset, []*goast.File{f}, info)
	require.NoError(t, err)

	return checkedSource{fset: fset, files: []*goast.File{f}, pkg: pkg, info: info}
}

func (cs checkedSource) extractor(maxDepth int) *fieldExtractor {
	index, _ := buildStructIndex(cs.fset, cs.info, cs.files)
	return newFieldExtractor(index, cs.fset, maxDepth)
}

// typeOf returns the type of the package-level type or var name.
func (cs checkedSource) typeOf(t *testing.T, name string) types.Type {
	t.Helper()
	obj := cs.pkg.Scope().Lookup(name)
	require.NotNil(t, obj, name)
	return obj.Type()
}

func fieldNames(fields []FieldInfo) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// fieldAt follows a dotted path of field names.
func fieldAt(t *testing.T, fields []FieldInfo, path string) FieldInfo {
	t.Helper()
	var cur FieldInfo
	for _, name := range strings.Split(path, ".") {
		f := findField(fields, name)
		require.NotNil(t, f, "field %s of path %s", name, path)
		cur = *f
		fields = cur.Fields
	}
	return cur
}

func TestExpandDepthBound(t *testing.T) {
	var b strings.Builder
	b.WriteString("package p\n")
	const chain = 15
	for i := range chain {
		fmt.Fprintf(&b, "type T%d struct { V string; Next T%d }\n", i, i+1)
	}
	fmt.Fprintf(&b, "type T%d struct { V string }\n", chain)

	cs := checkSource(t, b.String())
	fe := cs.extractor(10)

	tv := fe.describe("root", cs.typeOf(t, "T0"))

	levels := 0
	for fields := tv.Fields; len(fields) > 0; {
		levels++
		next := findField(fields, "Next")
		require.NotNil(t, next)
		fields = next.Fields
	}
	assert.Equal(t, 10, levels)
}

func TestExpandDepthConfigurable(t *testing.T) {
	cs := checkSource(t, `package p
type A struct { B B }
type B struct { C C }
type C struct { Name string }
`)
	fe := cs.extractor(2)

	tv := fe.describe("a", cs.typeOf(t, "A"))
	b := fieldAt(t, tv.Fields, "B")
	c := fieldAt(t, b.Fields, "C")
	assert.Equal(t, "C", c.TypeStr)
	assert.Empty(t, c.Fields, "depth 2 is not expanded")
}

func TestExpandTerminatesOnCycles(t *testing.T) {
	cs := checkSource(t, `package p
type TreeNode struct {
	Value    string
	Parent   *TreeNode
	Children []*TreeNode
	Index    map[string]*TreeNode
}

type A struct {
	Name string
	B    *B
}

type B struct {
	Label string
	A     *A
}
`)
	fe := cs.extractor(DefaultMaxDepth)

	root := fe.describe("root", cs.typeOf(t, "TreeNode"))
	assert.Equal(t, []string{"Value", "Parent", "Children", "Index"}, fieldNames(root.Fields))

	children := fieldAt(t, root.Fields, "Children")
	assert.True(t, children.IsSlice)
	assert.Equal(t, "*TreeNode", children.ElemType)
	assert.Empty(t, children.Fields)
	assert.Empty(t, fieldAt(t, root.Fields, "Parent").Fields)

	index := fieldAt(t, root.Fields, "Index")
	assert.True(t, index.IsMap)
	assert.Equal(t, "string", index.KeyType)

	a := fe.describe("a", cs.typeOf(t, "A"))
	assert.Equal(t, "string", fieldAt(t, a.Fields, "B.Label").TypeStr)
	assert.Empty(t, fieldAt(t, a.Fields, "B.A").Fields)
}

func TestExpandIndependentOfOrder(t *testing.T) {
	cs := checkSource(t, `package p
type A struct {
	Name string
	B    *B
}

type B struct {
	Name string
	A    *A
}
`)
	want := cs.extractor(DefaultMaxDepth).describe("b", cs.typeOf(t, "B"))
	assert.Equal(t, []string{"Name", "B"}, fieldNames(fieldAt(t, want.Fields, "A").Fields))

	fe := cs.extractor(DefaultMaxDepth)
	fe.describe("a", cs.typeOf(t, "A"))
	got := fe.describe("b", cs.typeOf(t, "B"))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("B after A differs from B alone (-alone +after):\n%s", diff)
	}
}

func TestExpandCachedTreeRespectsDepth(t *testing.T) {
	cs := checkSource(t, `package p
type A struct { B B }
type B struct { C C }
type C struct { D D }
type D struct { E E }
type E struct { Name string }
`)
	want := cs.extractor(4).describe("a", cs.typeOf(t, "A"))
	assert.Empty(t, fieldAt(t, want.Fields, "B.C.D.E").Fields)

	fe := cs.extractor(4)
	c := fe.describe("c", cs.typeOf(t, "C"))
	assert.Equal(t, []string{"Name"}, fieldNames(fieldAt(t, c.Fields, "D.E").Fields))

	got := fe.describe("a", cs.typeOf(t, "A"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("A after C differs from A alone (-alone +after):\n%s", diff)
	}
}

func TestExpandSiblingsOfSameType(t *testing.T) {
	cs := checkSource(t, `package p
type Address struct {
	Street string
	City   string
}

type Person struct {
	Home Address
	Work Address
	Past []Address
}
`)
	fe := cs.extractor(DefaultMaxDepth)

	person := fe.describe("person", cs.typeOf(t, "Person"))
	for _, name := range []string{"Home", "Work", "Past"} {
		assert.Equal(t, []string{"Street", "City"}, fieldNames(fieldAt(t, person.Fields, name).Fields), name)
	}
}

func TestExpandGenericInstances(t *testing.T) {
	cs := checkSource(t, `package p
type Page[T any] struct {
	Items []T
	Total int
}

type User struct { Name string }
type Post struct { Title string }

var users Page[User]
var posts Page[Post]
`)
	fe := cs.extractor(DefaultMaxDepth)

	users := fe.describe("users", cs.typeOf(t, "users"))
	posts := fe.describe("posts", cs.typeOf(t, "posts"))

	assert.Equal(t, "Page[User]", users.TypeStr)
	assert.Equal(t, "Page[Post]", posts.TypeStr)
	assert.Equal(t, []string{"Name"}, fieldNames(fieldAt(t, users.Fields, "Items").Fields))
	assert.Equal(t, []string{"Title"}, fieldNames(fieldAt(t, posts.Fields, "Items").Fields))
}

func TestExpandCacheIdempotent(t *testing.T) {
	cs := checkSource(t, `package p
// User is a registered account.
type User struct {
	// Name is the display name.
	Name    string
	Friends []*User
	Groups  map[string]Group
}

type Group struct {
	Title   string
	Members []User
}
`)
	fe := cs.extractor(DefaultMaxDepth)
	typ := cs.typeOf(t, "User")

	first := fe.describe("u", typ)
	cached := fe.cache.len()
	second := fe.describe("u", typ)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second expansion differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, cached, fe.cache.len())
	assert.Equal(t, "User is a registered account.\n", first.Doc)
	assert.Equal(t, "Name is the display name.\n", fieldAt(t, first.Fields, "Name").Doc)
}

func TestExpandEmbeddedPromotion(t *testing.T) {
	cs := checkSource(t, `package p
type Base struct {
	ID   int
	Name string
}

// Label renders the base for lists.
func (b Base) Label() string { return b.Name }

type meta struct {
	Created string
}

type Item struct {
	Base
	meta
	Name  string
	Price float64
}
`)
	fe := cs.extractor(DefaultMaxDepth)

	item := fe.describe("item", cs.typeOf(t, "Item"))
	assert.Equal(t, []string{"Base", "Name", "Price", "ID", "Created", "Label"}, fieldNames(item.Fields))

	label := fieldAt(t, item.Fields, "Label")
	assert.Equal(t, MethodTypeStr, label.TypeStr)
	assert.Equal(t, []ParamInfo{{TypeStr: "string"}}, label.Returns)
	assert.Equal(t, "Label renders the base for lists.\n", label.Doc)
}

func TestExpandMethodsAndInterfaces(t *testing.T) {
	cs := checkSource(t, `package p
type Named interface {
	Name() string
}

type Shape interface {
	Named
	// Area returns the surface in square units.
	Area() float64
}

type Canvas struct {
	Shapes []Shape
	title  string
}

// Title returns the canvas title.
func (c *Canvas) Title() string { return c.title }

func (c *Canvas) Scale(factor float64, label string) (int, error) { return 0, nil }

func (c *Canvas) reset() {}
`)
	fe := cs.extractor(DefaultMaxDepth)

	canvas := fe.describe("canvas", types.NewPointer(cs.typeOf(t, "Canvas")))
	assert.Equal(t, "*Canvas", canvas.TypeStr)
	assert.Equal(t, []string{"Shapes", "Scale", "Title"}, fieldNames(canvas.Fields))

	scale := fieldAt(t, canvas.Fields, "Scale")
	assert.Equal(t, []ParamInfo{{Name: "factor", TypeStr: "float64"}, {Name: "label", TypeStr: "string"}}, scale.Params)
	assert.Equal(t, []ParamInfo{{TypeStr: "int"}, {TypeStr: "error"}}, scale.Returns)
	assert.Equal(t, "Title returns the canvas title.\n", fieldAt(t, canvas.Fields, "Title").Doc)

	shapes := fieldAt(t, canvas.Fields, "Shapes")
	assert.Equal(t, []string{"Area", "Name"}, fieldNames(shapes.Fields))
	assert.Equal(t, "Area returns the surface in square units.\n", fieldAt(t, shapes.Fields, "Area").Doc)
}

func TestDescribeCollections(t *testing.T) {
	cs := checkSource(t, `package p
type Drug struct {
	Name         string
	Manufacturer Manufacturer
}

type Manufacturer struct {
	Name    string
	Country string
}

var drugs []Drug
var stock map[string]*Drug
`)
	fe := cs.extractor(DefaultMaxDepth)

	drugs := fe.describe("drugs", cs.typeOf(t, "drugs"))
	assert.True(t, drugs.IsSlice)
	assert.Equal(t, "Drug", drugs.ElemType)
	assert.Equal(t, "string", fieldAt(t, drugs.Fields, "Manufacturer.Country").TypeStr)

	stock := fe.describe("stock", cs.typeOf(t, "stock"))
	assert.True(t, stock.IsMap)
	assert.Equal(t, "string", stock.KeyType)
	assert.Equal(t, "*Drug", stock.ElemType)
	assert.Equal(t, []string{"Name", "Manufacturer"}, fieldNames(stock.Fields))
}

func TestDescribeBasicType(t *testing.T) {
	cs := checkSource(t, "package p\nvar n int\n")
	fe := cs.extractor(DefaultMaxDepth)

	tv := fe.describe("n", cs.typeOf(t, "n"))
	assert.Equal(t, TemplateVar{Name: "n", TypeStr: "int"}, tv)
}
