// Package noosexit reports calls that terminate the process from main.main
// without running deferred calls: os.Exit and the log.Fatal family.
// main should return, or panic, so the console flushes its session mirror
// and its logger on the way out.
package noosexit

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer is the noosexit analysis pass.
var Analyzer = &analysis.Analyzer{
	Name: "noosexit",
	Doc:  "prohibits os.Exit and log.Fatal* in main.main",
	Run:  run,
}

// forbidden maps a package path to the functions of it that must not be called.
var forbidden = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		// Exclude go-build cache files
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				// Closures run later, possibly after main has returned.
				if _, isLit := n.(*ast.FuncLit); isLit {
					return false
				}

				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				if name, bad := terminates(pass, call); bad {
					pass.Reportf(call.Pos(), "avoid using %s in main.main", name)
				}

				return true
			})
		}
	}
	return nil, nil
}

// terminates reports whether call is one of the forbidden package-level functions.
func terminates(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}
	// Methods, e.g. (*log.Logger).Fatal, are not package-level calls.
	if signature, isSig := fn.Type().(*types.Signature); isSig && signature.Recv() != nil {
		return "", false
	}

	names, watched := forbidden[fn.Pkg().Path()]
	if !watched || !names[fn.Name()] {
		return "", false
	}
	return fn.Pkg().Name() + "." + fn.Name(), true
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
