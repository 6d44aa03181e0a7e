// ABOUTME: Plan progress computation from per-action progress values
// ABOUTME: Overall progress is the arithmetic mean over all plan actions

package scheduler

// computePlanProgressStatus returns the mean of per-action progress values:
// 0 for actions not started, 1 for finished ones, fractional while running.
// A plan without actions is complete.
//
// Per-action values only ever increase, so the mean is non-decreasing while
// the plan is fixed. Extending a provisional plan adds zero-valued actions
// and can lower it.
func computePlanProgressStatus(progress []float64) float64 {
	if len(progress) == 0 {
		return 1
	}
	var sum float64
	for _, p := range progress {
		sum += clamp01(p)
	}
	return sum / float64(len(progress))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
