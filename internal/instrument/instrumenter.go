package instrument

import (
	"go/ast"
	"go/token"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/tools/go/ast/astutil"
)

const (
	// DefaultRuntimeImport is the import path of the profiling runtime whose
	// Log function instrumented call sites invoke.
	DefaultRuntimeImport = "github.com/callwatch/callwatch/pkg/profile"

	// runtimeAlias names the injected import inside rewritten files.
	runtimeAlias = "cwprofile"

	logFuncName   = "Log"
	flushFuncName = "Flush"
)

// Options configures an Instrumenter.
type Options struct {
	Logger zerolog.Logger

	// RuntimeImport overrides the runtime package import path.
	RuntimeImport string

	// HookMain prepends "defer cwprofile.Flush()" to main.main when a main
	// package is part of the transformed set, so the report fires at normal
	// process termination.
	HookMain bool
}

// Instrumenter applies a scanner worklist to the loaded packages.
type Instrumenter struct {
	logger     zerolog.Logger
	importPath string
	hookMain   bool
}

// NewInstrumenter creates an instrumenter.
func NewInstrumenter(opts Options) *Instrumenter {
	importPath := opts.RuntimeImport
	if importPath == "" {
		importPath = DefaultRuntimeImport
	}
	return &Instrumenter{
		logger:     opts.Logger.With().Str("component", "instrumenter").Logger(),
		importPath: importPath,
		hookMain:   opts.HookMain,
	}
}

// ChangedFile is a source file whose syntax tree was rewritten.
type ChangedFile struct {
	Path string
	AST  *ast.File
	Fset *token.FileSet
}

// Result describes one Apply run.
type Result struct {
	// Modified reports whether any file changed; the host uses it to decide
	// whether cached analyses are stale.
	Modified bool

	// Sites is the number of logging calls inserted in this run.
	Sites int

	// Files lists every rewritten file.
	Files []ChangedFile
}

type edit struct {
	before ast.Stmt
	stmt   ast.Stmt
}

// Apply inserts a logging call immediately before each worklist site, passing
// the resolved callee name and the enclosing function name as fresh string
// constants. The original calls' operands, ordering, and side effects are
// untouched.
//
// Sites whose insertion point is already preceded by an identical logging
// call are skipped, making repeated application idempotent.
func (in *Instrumenter) Apply(pkgs []*Package, sites []CallSite) *Result {
	res := &Result{}

	perOwner := make(map[ast.Node][]edit)
	var ownerOrder []ast.Node
	touched := make(map[*File]*Package)
	var fileOrder []*File
	touch := func(file *File, pkg *Package) {
		if _, seen := touched[file]; !seen {
			fileOrder = append(fileOrder, file)
		}
		touched[file] = pkg
	}

	for i := range sites {
		site := &sites[i]
		if in.alreadyInstrumented(site) {
			in.logger.Debug().
				Str("callee", site.Callee).
				Str("pos", site.Pos.String()).
				Msg("call site already instrumented, skipping")
			continue
		}

		if _, seen := perOwner[site.Owner]; !seen {
			ownerOrder = append(ownerOrder, site.Owner)
		}
		perOwner[site.Owner] = append(perOwner[site.Owner], edit{
			before: site.Stmt,
			stmt:   in.logStmt(site.Callee, site.Caller),
		})
		touch(site.File, site.Pkg)
		res.Sites++

		in.logger.Info().
			Str("callee", site.Callee).
			Str("caller", site.Caller).
			Str("pos", site.Pos.String()).
			Msg("instrumented call site")
	}

	for _, owner := range ownerOrder {
		applyEdits(owner, perOwner[owner])
	}

	if res.Sites > 0 && in.hookMain {
		if file, pkg, ok := in.hookMainFunc(pkgs); ok {
			touch(file, pkg)
		}
	}

	for _, file := range fileOrder {
		pkg := touched[file]
		astutil.AddNamedImport(pkg.Fset, file.AST, runtimeAlias, in.importPath)
		res.Files = append(res.Files, ChangedFile{
			Path: file.Path,
			AST:  file.AST,
			Fset: pkg.Fset,
		})
	}

	res.Modified = len(res.Files) > 0
	return res
}

// applyEdits rebuilds an owner's statement list with the logging calls
// spliced in ahead of their target statements, preserving worklist order for
// multiple insertions at the same statement.
func applyEdits(owner ast.Node, edits []edit) {
	inserts := make(map[ast.Stmt][]ast.Stmt, len(edits))
	for _, e := range edits {
		inserts[e.before] = append(inserts[e.before], e.stmt)
	}

	list := stmtList(owner)
	newList := make([]ast.Stmt, 0, len(list)+len(edits))
	for _, st := range list {
		newList = append(newList, inserts[st]...)
		newList = append(newList, st)
	}
	setStmtList(owner, newList)
}

// alreadyInstrumented reports whether the site's insertion point is preceded
// by a logging call with identical arguments. The inserted call itself is the
// idempotence marker; no separate tag is kept. Statements containing several
// matched calls accumulate a run of logging calls, so the whole run is
// checked, not just the nearest statement.
func (in *Instrumenter) alreadyInstrumented(site *CallSite) bool {
	list := stmtList(site.Owner)
	for i, st := range list {
		if st != site.Stmt {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			args, ok := logCallArgs(list[j])
			if !ok {
				return false
			}
			if args == [2]string{site.Callee, site.Caller} {
				return true
			}
		}
		return false
	}
	return false
}

// logCallArgs extracts the two string arguments of a statement of the form
// `cwprofile.Log("api", "caller")`.
func logCallArgs(st ast.Stmt) ([2]string, bool) {
	es, ok := st.(*ast.ExprStmt)
	if !ok {
		return [2]string{}, false
	}
	call, ok := es.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 2 {
		return [2]string{}, false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != logFuncName {
		return [2]string{}, false
	}
	x, ok := sel.X.(*ast.Ident)
	if !ok || x.Name != runtimeAlias {
		return [2]string{}, false
	}
	return [2]string{litString(call.Args[0]), litString(call.Args[1])}, true
}

func litString(e ast.Expr) string {
	bl, ok := e.(*ast.BasicLit)
	if !ok || bl.Kind != token.STRING {
		return ""
	}
	s, err := strconv.Unquote(bl.Value)
	if err != nil {
		return ""
	}
	return s
}

// logStmt builds `cwprofile.Log("<callee>", "<caller>")`. String constants
// are freshly materialized per site; duplicates are acceptable.
func (in *Instrumenter) logStmt(callee, caller string) ast.Stmt {
	return &ast.ExprStmt{X: &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(runtimeAlias),
			Sel: ast.NewIdent(logFuncName),
		},
		Args: []ast.Expr{stringLit(callee), stringLit(caller)},
	}}
}

func stringLit(s string) ast.Expr {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

// hookMainFunc prepends a deferred report flush to main.main if one is not
// already there. Reports the containing file when it made a change.
func (in *Instrumenter) hookMainFunc(pkgs []*Package) (*File, *Package, bool) {
	for _, pkg := range pkgs {
		if pkg.Name != "main" {
			continue
		}
		for _, file := range pkg.Files {
			for _, decl := range file.AST.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Name.Name != "main" || fd.Recv != nil || fd.Body == nil {
					continue
				}
				if len(fd.Body.List) > 0 && isFlushDefer(fd.Body.List[0]) {
					return nil, nil, false
				}
				flush := &ast.DeferStmt{Call: &ast.CallExpr{
					Fun: &ast.SelectorExpr{
						X:   ast.NewIdent(runtimeAlias),
						Sel: ast.NewIdent(flushFuncName),
					},
				}}
				fd.Body.List = append([]ast.Stmt{flush}, fd.Body.List...)

				in.logger.Info().
					Str("pkg", pkg.Path).
					Msg("hooked report flush into main")
				return file, pkg, true
			}
		}
	}
	return nil, nil, false
}

func isFlushDefer(st ast.Stmt) bool {
	ds, ok := st.(*ast.DeferStmt)
	if !ok {
		return false
	}
	sel, ok := ds.Call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != flushFuncName {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == runtimeAlias
}
