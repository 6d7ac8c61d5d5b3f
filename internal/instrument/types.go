package instrument

import (
	"go/ast"
	"go/token"
	"go/types"
)

// File is one parsed source file of a loaded package.
type File struct {
	// Path is the file's location on disk.
	Path string

	// AST is the file's syntax tree, mutated in place by the instrumenter.
	AST *ast.File
}

// Package is the unit of transformation: parsed files plus type information.
type Package struct {
	// Name is the package name (e.g. "main").
	Name string

	// Path is the package's import path.
	Path string

	// Fset maps syntax positions back to source locations.
	Fset *token.FileSet

	// Files are the package's compiled Go files.
	Files []*File

	// Info holds the type checker's object resolution for the files.
	Info *types.Info
}

// CallSite identifies one qualifying call found by the scanner. It is
// transformation-time only and is not kept past an Apply run.
type CallSite struct {
	// Pkg and File locate the call.
	Pkg  *Package
	File *File

	// Call is the matched call expression.
	Call *ast.CallExpr

	// Stmt is the statement the logging call is inserted before, and Owner is
	// the node whose statement list contains it (a block, case clause, or
	// select clause).
	Stmt  ast.Stmt
	Owner ast.Node

	// Callee is the resolved full name of the called function.
	Callee string

	// Caller is the name of the enclosing function.
	Caller string

	// Pos is the call's source position, for diagnostics.
	Pos token.Position
}

// stmtList returns the statement slice owned by a scanner-reported owner node.
func stmtList(owner ast.Node) []ast.Stmt {
	switch n := owner.(type) {
	case *ast.BlockStmt:
		return n.List
	case *ast.CaseClause:
		return n.Body
	case *ast.CommClause:
		return n.Body
	}
	return nil
}

// setStmtList replaces the statement slice owned by owner.
func setStmtList(owner ast.Node, list []ast.Stmt) {
	switch n := owner.(type) {
	case *ast.BlockStmt:
		n.List = list
	case *ast.CaseClause:
		n.Body = list
	case *ast.CommClause:
		n.Body = list
	}
}
