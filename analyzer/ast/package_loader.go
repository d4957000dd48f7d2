package ast

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"go/types"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedTypesSizes |
	packages.NeedImports

// loadPackages loads and type-checks every package under dir.
func loadPackages(dir string, fset *token.FileSet) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode:  loadMode,
		Dir:   dir,
		Fset:  fset,
		Tests: false,
	}
	return packages.Load(cfg, "./...")
}

// mergeTypeInfo consolidates the type information of all loaded packages
// into one types.Info, so that expressions from any file resolve through a
// single lookup. It also collects the syntax trees and the non-import
// errors of each package.
func mergeTypeInfo(pkgs []*packages.Package, result *AnalysisResult) (*types.Info, []*goast.File) {
	totalTypes, totalDefs, totalUses, totalFiles := 0, 0, 0, 0
	for _, pkg := range pkgs {
		if shouldSkipPackage(pkg.PkgPath) {
			continue
		}
		totalFiles += len(pkg.Syntax)
		if pkg.TypesInfo != nil {
			totalTypes += len(pkg.TypesInfo.Types)
			totalDefs += len(pkg.TypesInfo.Defs)
			totalUses += len(pkg.TypesInfo.Uses)
		}
	}

	info := &types.Info{
		Types:      make(map[goast.Expr]types.TypeAndValue, totalTypes),
		Defs:       make(map[*goast.Ident]types.Object, totalDefs),
		Uses:       make(map[*goast.Ident]types.Object, totalUses),
		Selections: make(map[*goast.SelectorExpr]*types.Selection),
		Instances:  make(map[*goast.Ident]types.Instance),
	}
	allFiles := make([]*goast.File, 0, totalFiles)

	for _, pkg := range pkgs {
		if shouldSkipPackage(pkg.PkgPath) {
			continue
		}

		for _, e := range pkg.Errors {
			if !IsImportRelatedError(e.Msg) {
				result.Errors = append(result.Errors, fmt.Sprintf("type error: %v", e.Msg))
			}
		}

		allFiles = append(allFiles, pkg.Syntax...)

		if pkg.TypesInfo != nil {
			maps.Copy(info.Types, pkg.TypesInfo.Types)
			maps.Copy(info.Defs, pkg.TypesInfo.Defs)
			maps.Copy(info.Uses, pkg.TypesInfo.Uses)
			maps.Copy(info.Selections, pkg.TypesInfo.Selections)
			maps.Copy(info.Instances, pkg.TypesInfo.Instances)
		}
	}

	return info, allFiles
}

// shouldSkipPackage skips vendored and generated packages.
func shouldSkipPackage(pkgPath string) bool {
	lower := strings.ToLower(pkgPath)

	if strings.Contains(lower, "/vendor/") || strings.HasPrefix(lower, "vendor/") {
		return true
	}
	if strings.Contains(lower, "/generated/") {
		return true
	}
	if strings.HasSuffix(lower, "_generated") || strings.HasSuffix(lower, ".pb") {
		return true
	}
	return strings.HasSuffix(lower, "_test")
}

var importPhrases = []string{
	"could not import",
	"can't find import",
	"cannot find package",
	"no required module provides",
	"build constraints exclude all go files",
}

// IsImportRelatedError reports errors about import resolution. They depend
// on the environment the analyzer runs in and say nothing about templates.
func IsImportRelatedError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range importPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// checkModuleRoot looks for a go.mod at or above dir and returns its module
// path. Analysis works without one, but imports then rarely resolve.
func checkModuleRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	for d := abs; ; d = filepath.Dir(d) {
		path := filepath.Join(d, "go.mod")
		data, err := os.ReadFile(path)
		if err == nil {
			mf, err := modfile.ParseLax(path, data, nil)
			if err != nil {
				return "", fmt.Errorf("parse %s: %w", path, err)
			}
			if mf.Module == nil {
				return "", fmt.Errorf("%s has no module directive", path)
			}
			return mf.Module.Mod.Path, nil
		}
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	return "", fmt.Errorf("no go.mod found at or above %s", abs)
}
