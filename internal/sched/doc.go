// Package sched implements the staggered periodic-callback scheduler used by
// the robot base to spread non-critical work across control loop ticks.
//
// # Overview
//
// Callbacks are registered with a period and an optional offset. The offset
// staggers callbacks that share a period so they don't all land on the same
// tick. Tick() is called once per control loop iteration and runs every
// callback whose expiry has passed, in ascending expiry order.
//
// # Catch-up policy
//
// If the loop stalls, a callback does not burst-fire its missed intervals.
// After a run, the expiry advances by whole multiples of the period to the
// smallest period-aligned instant strictly after the current tick time. This
// keeps callbacks phase-aligned without drift and without phantom firings.
//
// # Failure semantics
//
// Errors and recovered panics from a callback are collected into the Report
// returned by Tick and logged. A failing callback is always rescheduled, and
// later callbacks in the same tick still run.
//
// The scheduler is not safe for concurrent use: by contract it is owned by
// the control loop goroutine and mutated only from Tick and Register.
package sched
