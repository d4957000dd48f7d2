// Package ast statically analyzes Go source code to extract:
//  1. template render calls with the data variables available to them
//  2. template function maps (custom functions available in templates)
//  3. template variables set through the request context
package ast

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"time"
)

// analysisRun carries the state of one AnalyzeDir call. Everything in it is
// built fresh per run and discarded when the run returns.
type analysisRun struct {
	dir      string
	fset     *token.FileSet
	info     *types.Info
	config   AnalysisConfig
	fields   *fieldExtractor
	funcDocs map[token.Pos]string
}

// AnalyzeDir analyzes the Go packages under dir.
//
// The analysis proceeds in phases:
//   - load and type-check packages
//   - build the struct index (concurrent)
//   - collect function scopes and template operations (concurrent)
//   - assemble render calls and deduplicate func maps
//   - enrich with the context file, if given
//
// Problems are reported as advisory strings in Errors; a failed package load
// is the only one that cuts the analysis short.
func AnalyzeDir(dir string, contextFile string, config AnalysisConfig) AnalysisResult {
	start := time.Now()
	config = config.withDefaults()

	result := AnalysisResult{
		RenderCalls: []RenderCall{},
		FuncMaps:    []FuncMapInfo{},
		Errors:      []string{},
	}

	if _, err := checkModuleRoot(dir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("module: %v", err))
	}

	fset := token.NewFileSet()
	pkgs, err := loadPackages(dir, fset)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("load error: %v", err))
		return result
	}

	info, files := mergeTypeInfo(pkgs, &result)
	slog.Debug("packages loaded", "dir", dir, "packages", len(pkgs), "files", len(files), "elapsed", time.Since(start))

	r := newAnalysisRun(dir, fset, info, files, config)
	result.RenderCalls, result.FuncMaps = r.analyze(files)

	if contextFile != "" {
		calls, err := r.enrichRenderCallsWithContext(result.RenderCalls, contextFile, pkgs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("context file: %v", err))
		} else {
			result.RenderCalls = calls
		}
	}

	sortRenderCalls(result.RenderCalls)

	slog.Debug("analysis done",
		"renderCalls", len(result.RenderCalls),
		"funcMaps", len(result.FuncMaps),
		"cachedTypes", r.fields.cache.len(),
		"errors", len(result.Errors),
		"elapsed", time.Since(start),
	)
	return result
}

// newAnalysisRun indexes files and prepares the shared extraction state.
func newAnalysisRun(dir string, fset *token.FileSet, info *types.Info, files []*goast.File, config AnalysisConfig) *analysisRun {
	index, funcDocs := buildStructIndex(fset, info, files)
	slog.Debug("struct index built", "types", len(index), "funcs", len(funcDocs))

	return &analysisRun{
		dir:      dir,
		fset:     fset,
		info:     info,
		config:   config,
		fields:   newFieldExtractor(index, fset, config.MaxDepth),
		funcDocs: funcDocs,
	}
}

// analyze collects scopes from files and assembles their render calls and
// func maps.
func (r *analysisRun) analyze(files []*goast.File) ([]RenderCall, []FuncMapInfo) {
	scopes := r.collectFuncScopes(files)
	slog.Debug("scopes collected", "scopes", len(scopes))

	globals := extractGlobalImplicitVars(scopes)
	return r.assembleRenderCalls(scopes, globals), aggregateFuncMaps(scopes)
}
