// Package persistence provides runtime state persistence for P2P2 devices.
//
// This package handles the JSON serialization of the state that must survive
// a device restart: the pairing configuration set through P2P_SET and the
// pairing cache, so that peers paired before the restart can reuse their
// key material.
package persistence
