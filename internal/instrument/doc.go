// Package instrument rewrites Go packages to log calls to denylisted
// functions.
//
// # Overview
//
// The transformation runs in two strictly separated phases. The Scanner makes
// a read-only pass over every function body and materializes a finite worklist
// of call sites whose statically resolved callee name matches the denylist
// exactly. The Instrumenter then applies the worklist, inserting a call to the
// profiling runtime's logging entry point immediately before the statement
// containing each matched call. Mutation never overlaps traversal, so edits
// cannot invalidate a scan in progress.
//
// Only direct calls qualify: the callee must resolve to a named function
// through the type checker. Indirect calls through function values, builtins,
// and conversions have no static name and are excluded.
//
// Re-running the transformation over already-instrumented source is
// idempotent: the inserted logging call doubles as the marker, and a site
// whose insertion point is already preceded by an identical logging call is
// skipped.
package instrument
