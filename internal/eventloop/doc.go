// Package eventloop provides the single-threaded task queue that owns all
// dashboard state.
//
// Components never lock: they are only invoked from the loop goroutine, either
// directly through Post or through timers created with AfterFunc and Every.
// Network calls run on Spawn-ed goroutines and hand their results back with
// Post, so a snapshot reference captured at the start of a task cannot be
// replaced while that task runs. The Scheduler interface lets tests drive the
// same components with a manual clock.
package eventloop
