// Package wire defines the CBOR frame format P2P2 devices exchange over the
// medium.
//
// Frames use CBOR (RFC 8949) with integer keys. Every frame carries its type,
// the sender address and, except for USD broadcasts, the destination
// address. The body depends on the type:
//
//   - Subscribe, Publish: USD service discovery, optionally with the P2P2
//     device attributes of the sender
//   - BootstrapRequest, BootstrapResponse: bootstrapping method negotiation
//   - Auth1, Auth2, Auth3: the PASN-style authentication exchange
//   - GroupConfirm, GroupAssociated, GroupDeauth, GroupLeave: group
//     formation and teardown
//
// Decode rejects frames whose body does not match their type, so the
// receiver never acts on a partial frame.
package wire
