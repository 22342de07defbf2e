// Package pairing implements the per-peer P2P2 pairing state machine.
//
// # States
//
// A pairing attempt moves Idle -> BootstrapRequested -> Authenticating ->
// Paired. Any non-terminal state can move to Failed or TimedOut. An attempt
// that reuses cached key material skips bootstrapping and moves Idle ->
// Authenticating directly; a cache miss at the responder sends it back to
// BootstrapRequested.
//
// # Roles
//
// The initiator sends the bootstrapping request and the first PASN frame.
// The responder answers only peers it has authorized (P2P_CONNECT with
// "auth"); an early request is answered with a comeback status and the
// initiator retries with exponential backoff until its pairing deadline.
//
// # Concurrency
//
// Tracker allows one attempt per peer and one inbound attempt at a time. A
// second local Connect to the same peer fails with ErrBusy; a bootstrapping
// request from another peer while an inbound attempt is in flight is
// answered with StatusBusy.
package pairing
