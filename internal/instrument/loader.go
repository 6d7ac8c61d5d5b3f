package instrument

import (
	"fmt"
	"go/token"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Load loads and type-checks the packages matched by patterns. Packages with
// load or type errors abort the transformation; malformed input is not
// locally recoverable.
func Load(patterns []string) ([]*Package, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Fset: fset,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo,
	}

	lpkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if len(lpkgs) == 0 {
		return nil, fmt.Errorf("no packages matched %v", patterns)
	}

	var loadErrs []string
	packages.Visit(lpkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			loadErrs = append(loadErrs, e.Error())
		}
	})
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("packages contain errors:\n%s", strings.Join(loadErrs, "\n"))
	}

	pkgs := make([]*Package, 0, len(lpkgs))
	for _, lp := range lpkgs {
		p := &Package{
			Name: lp.Name,
			Path: lp.PkgPath,
			Fset: fset,
			Info: lp.TypesInfo,
		}
		for _, f := range lp.Syntax {
			tf := fset.File(f.Pos())
			if tf == nil {
				continue
			}
			p.Files = append(p.Files, &File{Path: tf.Name(), AST: f})
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}
