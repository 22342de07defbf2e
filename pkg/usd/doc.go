// Package usd implements the session side of Unsynchronized Service
// Discovery (USD) for P2P2 devices.
//
// USD lets a device advertise (publish) or look for (subscribe) a named
// service without a pre-shared discovery window schedule. This package holds
// the per-device session table and the matching rules; frame exchange and
// timing are driven by the service package.
//
// # Session Table
//
// Publish and subscribe sessions live in two independent fixed-capacity
// arenas. Ids start at 1 and are handed out lowest-free-first from a free
// list, so an id is reused only after its session has been terminated and
// released:
//
//	pub, err := table.Publish(usd.PublishParams{
//	    ServiceName: "_test",
//	    Solicited:   true,
//	})
//	...
//	term, err := table.Terminate(usd.RolePublish, pub.ID, usd.ReasonUserRequest)
//	// queue the termination notification, then:
//	table.Release(usd.RolePublish, pub.ID)
//
// A full arena fails with ErrResourceExhausted. A publish that is neither
// solicited nor unsolicited fails with ErrInvalidParameters and leaves the
// table unchanged.
//
// # Matching
//
//   - An active subscribe probes; solicited publishes with the same service
//     name answer the probe.
//   - An unsolicited publish announces; every subscribe with the same service
//     name (active or passive) matches the announcement.
//   - srv_proto_type must be equal when either side sets it.
//
// The Matcher de-duplicates discovery results per (local session, peer,
// peer session) and reports again only when the publisher's SSI version
// changes.
package usd
