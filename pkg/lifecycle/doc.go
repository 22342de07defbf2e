// Package lifecycle implements the single logical clock that bounds every
// timed activity of a P2P2 device.
//
// One Timer per device tracks deadlines keyed by kind and id:
//
//   - KindPublish, KindSubscribe: USD session TTL expiry
//   - KindProbe, KindAnnounce: periodic subscribe probes and unsolicited
//     publish announcements
//   - KindPairing: pairing attempt deadline
//   - KindComeback: bootstrap retry after a comeback response
//   - KindFormation: group formation deadline
//
// # Generations
//
// Every Schedule returns a new generation number. Expiries are reported to
// the owner together with the generation they were scheduled with, and the
// owner must Claim them before acting:
//
//	timer := lifecycle.New(clock.New(), func(key lifecycle.Key, gen uint64) {
//	    loop.post(func() {
//	        if timer.Claim(key, gen) {
//	            expire(key)
//	        }
//	    })
//	})
//
// A cancelled or rescheduled entry fails Claim, so an expiry that raced with
// a cancel never terminates a session that was cancelled or refreshed.
//
// # Clock
//
// The timer runs on a github.com/benbjohnson/clock Clock. Production code
// uses clock.New(); tests use clock.NewMock() and advance time explicitly.
package lifecycle
