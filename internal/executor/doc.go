// Package executor runs plans produced by the planner.
//
// Each action is a registered Spec whose WorkFunc is stepped at a fixed
// frequency until it reports progress 1 or an error. Every action instance
// walks a Lifecycle (unconfigured, inactive, active) and publishes an
// ExecutionStatus when it becomes active.
//
// The executor runs at most one plan. A plan that is not Final may be
// extended while it runs; once its known actions are done the executor
// idles until the next revision arrives or the plan is aborted.
package executor
