// Package viz renders the progress of a running simulation in the terminal.
//
// [ProgressModel] is a Bubble Tea model fed with [sim.Progress] messages. It
// shows the completion bar, the throughput, the order parameters with a chart
// of the polar order, and a Braille projection of the sampled swimmers.
//
// # Key Bindings
//
//	q, ctrl+c - stop the run (the simulation writes a snapshot and exits)
//	v         - toggle the swimmer projection
package viz
