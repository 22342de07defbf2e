// Package medium abstracts the wireless medium P2P2 devices talk over.
//
// Devices only exchange encoded frames; they never share memory. Hub is an
// in-memory medium that connects several device instances in one process,
// used by the simulator and the tests. Receivers are called synchronously
// from the sender's goroutine and must not block.
package medium
