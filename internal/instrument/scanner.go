package instrument

import (
	"go/ast"
	"go/types"

	"github.com/rs/zerolog"
	"golang.org/x/tools/go/ast/astutil"
)

// Scanner finds call sites whose statically resolved callee matches a
// configured denylist. Scanning is read-only: the worklist is fully
// materialized before any mutation happens.
type Scanner struct {
	deny   map[string]struct{}
	logger zerolog.Logger
}

// NewScanner creates a scanner for the given denylist. Entries match a
// callee's full name ("os/exec.Command", "(*os/exec.Cmd).Run") or its bare
// name, exactly and case-sensitively.
func NewScanner(deny []string, logger zerolog.Logger) *Scanner {
	m := make(map[string]struct{}, len(deny))
	for _, name := range deny {
		m[name] = struct{}{}
	}
	return &Scanner{
		deny:   m,
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan walks every function body in pkgs and returns the matched call sites
// in source order. Function declarations without bodies are not scanned.
func (s *Scanner) Scan(pkgs []*Package) []CallSite {
	var sites []CallSite
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, decl := range file.AST.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Body == nil {
					continue
				}
				sites = append(sites, s.scanFunc(pkg, file, fd)...)
			}
		}
	}

	s.logger.Debug().Int("sites", len(sites)).Msg("scan complete")
	return sites
}

func (s *Scanner) scanFunc(pkg *Package, file *File, fd *ast.FuncDecl) []CallSite {
	caller := callerName(pkg, fd)

	var sites []CallSite
	var stack []ast.Node
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		stack = append(stack, n)

		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		callee, ok := s.resolve(pkg.Info, call)
		if !ok {
			return true
		}

		owner, stmt, ok := insertionPoint(stack)
		if !ok {
			// No statement list to insert into; should not happen for calls
			// inside a function body.
			s.logger.Warn().
				Str("callee", callee).
				Str("pos", pkg.Fset.Position(call.Pos()).String()).
				Msg("no insertion point for call site")
			return true
		}

		sites = append(sites, CallSite{
			Pkg:    pkg,
			File:   file,
			Call:   call,
			Stmt:   stmt,
			Owner:  owner,
			Callee: callee,
			Caller: caller,
			Pos:    pkg.Fset.Position(call.Pos()),
		})
		return true
	})
	return sites
}

// resolve returns the full name of the call's target if it is a direct call
// to a named, denylisted function. Indirect calls through function values,
// builtins, and type conversions never resolve to a *types.Func and are
// excluded.
func (s *Scanner) resolve(info *types.Info, call *ast.CallExpr) (string, bool) {
	var id *ast.Ident
	switch fun := astutil.Unparen(call.Fun).(type) {
	case *ast.Ident:
		id = fun
	case *ast.SelectorExpr:
		id = fun.Sel
	default:
		return "", false
	}

	fn, ok := info.Uses[id].(*types.Func)
	if !ok {
		return "", false
	}

	full := fn.FullName()
	if _, ok := s.deny[full]; ok {
		return full, true
	}
	if _, ok := s.deny[fn.Name()]; ok {
		return full, true
	}
	return "", false
}

// callerName names the function enclosing a call site. Calls inside function
// literals are attributed to the literal's enclosing declaration.
func callerName(pkg *Package, fd *ast.FuncDecl) string {
	if fn, ok := pkg.Info.Defs[fd.Name].(*types.Func); ok {
		return fn.FullName()
	}
	return pkg.Name + "." + fd.Name.Name
}

// insertionPoint picks, for a matched call, the innermost statement directly
// owned by a statement list. The logging call goes right before it. For calls
// buried in conditions or initializers this is the enclosing compound
// statement, keeping the log ahead of the call's execution. Two consequences:
// a call in a loop's condition or post statement is logged once rather than
// per iteration, and a call in an else-if condition is logged even when that
// branch is never evaluated.
func insertionPoint(stack []ast.Node) (owner ast.Node, stmt ast.Stmt, ok bool) {
	for i := len(stack) - 1; i > 0; i-- {
		st, isStmt := stack[i].(ast.Stmt)
		if !isStmt {
			continue
		}
		switch stack[i-1].(type) {
		case *ast.BlockStmt, *ast.CaseClause, *ast.CommClause:
			return stack[i-1], st, true
		}
	}
	return nil, nil, false
}
