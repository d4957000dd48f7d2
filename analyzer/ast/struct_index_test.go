package ast

import (
	goast "go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStructIndex(t *testing.T) {
	cs := checkSource(t, `package p

// User is an account.
type User struct {
	// Name is shown in the header.
	Name  string
	Email string // primary address
	*Base
}

type (
	// Base is embedded everywhere.
	Base struct{ ID int }

	Alias = User
)

// Store persists users.
type Store interface {
	// Save writes u.
	Save(u *User) error
}

// Greeting returns a salutation.
func (u *User) Greeting() string { return "hi " + u.Name }

func (u User) undocumented() {}

// helper is a plain function.
func helper() {}

type Page[T any] struct{ Items []T }

// Len counts the items.
func (p *Page[T]) Len() int { return len(p.Items) }
`)

	index, funcDocs := buildStructIndex(cs.fset, cs.info, cs.files)

	require.Contains(t, index, "p.User")
	user := index["p.User"]
	assert.Equal(t, "User is an account.\n", user.doc)
	assert.Equal(t, "Name is shown in the header.\n", user.fields["Name"].doc)
	assert.Equal(t, "primary address\n", user.fields["Email"].doc)
	assert.Equal(t, 6, user.fields["Name"].line)
	assert.Contains(t, user.fields, "Base", "embedded members are recorded by type name")
	assert.Equal(t, "Greeting returns a salutation.\n", user.fields["Greeting"].doc)
	assert.NotContains(t, user.fields, "undocumented")

	assert.Equal(t, "Base is embedded everywhere.\n", index["p.Base"].doc)
	assert.NotContains(t, index, "p.Alias")

	store := index["p.Store"]
	assert.Equal(t, "Store persists users.\n", store.doc)
	assert.Equal(t, "Save writes u.\n", store.fields["Save"].doc)

	assert.Equal(t, "Len counts the items.\n", index["p.Page"].fields["Len"].doc)

	var helperPos goast.Node
	for _, decl := range cs.files[0].Decls {
		if fn, ok := decl.(*goast.FuncDecl); ok && fn.Name.Name == "helper" {
			helperPos = fn.Name
		}
	}
	require.NotNil(t, helperPos)
	assert.Equal(t, "helper is a plain function.", funcDocs[helperPos.Pos()])
	assert.Len(t, funcDocs, 1, "methods are not plain functions")
}

func TestBuildStructIndexManyFiles(t *testing.T) {
	cs := checkSource(t, "package p\n\ntype A struct{ X int }\n")
	files := make([]*goast.File, 0, 64)
	for range 64 {
		files = append(files, cs.files[0])
	}

	index, _ := buildStructIndex(cs.fset, cs.info, files)
	assert.Len(t, index, 1)

	empty, docs := buildStructIndex(cs.fset, nil, nil)
	assert.Empty(t, empty)
	assert.Empty(t, docs)
}

func TestBuildStructIndexSamePackageName(t *testing.T) {
	fset := token.NewFileSet()
	info := &types.Info{
		Defs: make(map[*goast.Ident]types.Object),
		Uses: make(map[*goast.Ident]types.Object),
	}

	var files []*goast.File
	for _, pkg := range []struct{ path, doc string }{
		{"example.com/admin/models", "User is an administrator."},
		{"example.com/shop/models", "User is a customer."},
	} {
		src := "package models\n\n// " + pkg.doc + "\ntype User struct{ Name string }\n\n// Label names u.\nfunc (u User) Label() string { return u.Name }\n"
		f, err := parser.ParseFile(fset, pkg.path+"/user.go", src, parser.ParseComments)
		require.NoError(t, err)
		_, err = (&types.Config{}).Check(pkg.path, fset, []*goast.File{f}, info)
		require.NoError(t, err)
		files = append(files, f)
	}

	index, _ := buildStructIndex(fset, info, files)

	require.Len(t, index, 2)
	assert.Equal(t, "User is an administrator.\n", index["example.com/admin/models.User"].doc)
	assert.Equal(t, "User is a customer.\n", index["example.com/shop/models.User"].doc)
	for key, entry := range index {
		assert.Equal(t, "Label names u.\n", entry.fields["Label"].doc, key)
	}
}
