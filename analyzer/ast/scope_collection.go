package ast

import (
	"cmp"
	goast "go/ast"
	"go/token"
	"runtime"
	"slices"
	"sync"
)

// collectFuncScopes extracts template operations from every function and
// top-level var/const declaration.
//
// Concurrency model:
//   - one worker per CPU, each owning a contiguous chunk of units
//   - workers share only read-only state (type info, struct index) and the
//     field cache, which locks itself
//   - each worker sends its results once; the caller joins on the channel
//
// Scopes come back sorted by source position so that later first-wins
// merges are deterministic.
func (r *analysisRun) collectFuncScopes(files []*goast.File) []FuncScope {
	units := identifyScopeUnits(files)
	if len(units) == 0 {
		return nil
	}

	scopes := r.processUnitsConcurrently(units)
	slices.SortStableFunc(scopes, func(a, b FuncScope) int {
		return cmp.Compare(a.pos, b.pos)
	})
	return scopes
}

// identifyScopeUnits lists the top-level scope-bearing declarations.
// Function literals are not units of their own: the declaration that
// contains them processes them as nested scopes.
func identifyScopeUnits(files []*goast.File) []goast.Node {
	// ~8 declarations per file is typical
	units := make([]goast.Node, 0, len(files)*8)

	for _, f := range files {
		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *goast.FuncDecl:
				if d.Body != nil {
					units = append(units, d)
				}
			case *goast.GenDecl:
				if d.Tok == token.VAR || d.Tok == token.CONST {
					units = append(units, d)
				}
			}
		}
	}

	return units
}

// processUnitsConcurrently partitions units into one contiguous chunk per
// worker and gathers the informative scopes they find.
func (r *analysisRun) processUnitsConcurrently(units []goast.Node) []FuncScope {
	numWorkers := max(runtime.NumCPU(), 1)
	chunkSize := (len(units) + numWorkers - 1) / numWorkers

	resultChan := make(chan []FuncScope, numWorkers)
	var wg sync.WaitGroup

	for w := range numWorkers {
		start := w * chunkSize
		if start >= len(units) {
			break
		}
		end := min(start+chunkSize, len(units))

		wg.Add(1)
		go r.processChunk(units[start:end], resultChan, &wg)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var all []FuncScope
	for scopes := range resultChan {
		all = append(all, scopes...)
	}
	return all
}

// processChunk is the worker body. Its buffer is private until the single
// send at the end.
func (r *analysisRun) processChunk(chunk []goast.Node, resultChan chan<- []FuncScope, wg *sync.WaitGroup) {
	defer wg.Done()

	local := make([]FuncScope, 0, len(chunk)/2)
	for _, unit := range chunk {
		local = r.processScope(unit, newSymbolTable(), local)
	}

	resultChan <- local
}
