// Package assert carries the teacher's utils.Assert forward: a panic-on
// violated-invariant helper used inside the engine's core, never at the
// public API boundary (which returns errors instead).
package assert

// Invariant panics with msg if cond is false. Used for conditions that
// indicate a bug in the engine itself (corrupt internal bookkeeping),
// never for validating caller-supplied input.
func Invariant(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}
