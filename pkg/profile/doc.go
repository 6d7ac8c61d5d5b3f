// Package profile is the runtime library linked into instrumented programs.
//
// The callwatch instrumenter rewrites call sites of denylisted functions to
// invoke Log with the callee and caller names before the original call. This
// package aggregates those observations in a bounded, insertion-ordered table
// and writes a JSON report plus a console summary when the program shuts down.
//
// # Overview
//
// A single process-wide table records one entry per (api, caller) pair with a
// call count and the monotonic timestamps of the first and most recent call.
// The table never grows past its capacity; observations of new pairs beyond
// that are dropped silently. Log is safe to call from any number of
// goroutines.
//
// # Usage
//
// Instrumented code calls Log directly; the instrumenter also arranges for
// Flush to run when main returns:
//
//	func main() {
//		defer profile.Flush()
//		// ...
//	}
//
// Flush runs at most once. Crashes and forced termination bypass it; that is
// an accepted limitation, not a bug.
package profile
