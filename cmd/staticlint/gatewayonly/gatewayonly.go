// Package gatewayonly keeps outbound HTTP traffic in one place. Every call to the
// remote API has to pass through internal/gateway, which attaches the bearer token
// and handles authorization failures; a direct net/http client call elsewhere
// would bypass both.
package gatewayonly

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "gatewayonly",
	Doc:  "reports net/http client calls made outside internal/gateway",
	Run:  run,
}

// clientObjects are the net/http identifiers that issue or prepare outbound requests.
var clientObjects = map[string]bool{
	"Get":                   true,
	"Head":                  true,
	"Post":                  true,
	"PostForm":              true,
	"NewRequest":            true,
	"NewRequestWithContext": true,
	"DefaultClient":         true,
}

// exemptPackages may talk HTTP directly: the gateway itself and the stub service.
var exemptPackages = []string{
	"internal/gateway",
	"internal/stubapi",
}

func exempt(pkgPath string) bool {
	for _, suffix := range exemptPackages {
		if pkgPath == suffix || strings.HasSuffix(pkgPath, "/"+suffix) {
			return true
		}
	}
	return false
}

func run(pass *analysis.Pass) (interface{}, error) {
	if exempt(pass.Pkg.Path()) {
		return nil, nil
	}

	for _, file := range pass.Files {
		filename := pass.Fset.File(file.Pos()).Name()
		if strings.HasSuffix(filename, "_test.go") {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			obj := pass.TypesInfo.Uses[sel.Sel]
			if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != "net/http" {
				return true
			}
			// Only package-level identifiers: http.Get, not (*http.Client).Get.
			if obj.Parent() != obj.Pkg().Scope() {
				return true
			}
			if _, isType := obj.(*types.TypeName); isType || !clientObjects[obj.Name()] {
				return true
			}

			pass.Reportf(sel.Pos(), "http.%s outside internal/gateway: call the remote API through the gateway", obj.Name())
			return true
		})
	}

	return nil, nil
}
