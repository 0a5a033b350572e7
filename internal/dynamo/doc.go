// Package dynamo provides core simulation primitives for the pendubot
// runtime.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: vector representing plant state
//   - [System]: interface for ODE plants (dX/dt = f(X, u, t))
//   - [Integrator], [Advancer]: numerical integration interfaces
//   - [Observer]: read-only per-step consumer (renderers, metrics)
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. The scheduler owns
// all mutable state and calls into these interfaces from a single
// goroutine; renderers receive read-only snapshots.
package dynamo
