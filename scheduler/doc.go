// Package scheduler drives guests from a single control goroutine.
//
// Loop owns the control goroutine. It wakes on every frame from a
// FrameSource and runs the frame callback, and between frames it runs
// tasks marshalled onto it from other goroutines with Post and Call.
//
// Scheduler performs one tick: it walks a snapshot of the registry in
// insertion order and calls Update on every active instance. A failing
// instance is logged and counted but never stops the tick or the loop.
//
// # Loop States
//
//	Idle       Run has not been called, or has returned
//	Scheduled  Run is waiting for the next frame or task
//
// Run returns when its ctx is cancelled, when Stop is called, or after the
// frame limit set with WithMaxFrames.
package scheduler
