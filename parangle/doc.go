// Package parangle decides when a drifting parallactic angle requires a new
// convolution function.
//
// A Detector remembers the last angle it accepted and reports a change only
// when a new angle differs from it by at least the configured tolerance.
// It carries no ordering invariant: angles may arrive out of time order and
// the comparison stays a pure threshold test.
package parangle
