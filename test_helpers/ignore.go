package test_helpers

import (
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/brunokim/prolog-wam/wam"
)

var (
	// IgnoreElapsed ignores the wall-clock duration of solutions.
	IgnoreElapsed = cmpopts.IgnoreFields(wam.Solution{}, "Elapsed")
	// IgnoreBacktrackCount ignores the number of backtracks of solutions.
	IgnoreBacktrackCount = cmpopts.IgnoreFields(wam.Solution{}, "BacktrackCount")
	// IgnoreCounters ignores every execution counter of solutions.
	IgnoreCounters = cmpopts.IgnoreFields(wam.Solution{}, "Elapsed", "OpCount", "BacktrackCount")
)
