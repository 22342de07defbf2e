// Package group resolves P2P2 group roles and tracks the group a device
// operates or belongs to.
//
// Roles are decided without further negotiation once pairing completes:
// a joiner becomes client of the peer that already operates a group,
// otherwise the higher go_intent becomes group owner. Equal intents below
// the maximum are broken by address: the device whose address compares
// greater becomes group owner. Both sides apply the same rule to the same
// inputs, so they agree without exchanging another frame.
package group
