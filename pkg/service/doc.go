// Package service runs a P2P2 device on a shared medium.
//
// A Device ties the lower-level components together:
//   - USD publish and subscribe sessions (pkg/usd) with their TTL, probe and
//     announce timers (pkg/lifecycle)
//   - bootstrapping and authentication with peers (pkg/bootstrap, pkg/pairing)
//   - group formation after pairing and standalone groups (pkg/group)
//   - the pairing cache and configuration on disk (pkg/persistence)
//
// Every device owns one goroutine that processes commands, received frames
// and timer expiries in order. Notifications are appended to the device's
// event Queue and delivered to registered handlers.
//
// Example usage:
//
//	hub := medium.NewHub()
//	config := service.DefaultDeviceConfig()
//	config.Address = "02:00:00:00:01:00"
//
//	dev, err := service.NewDevice(config, hub)
//	dev.Start(ctx)
//	defer dev.Stop()
//
//	id, err := dev.Publish(usd.PublishParams{ServiceName: "printer", Unsolicited: true})
//	ev, err := dev.Events().Wait(ctx, service.EventReplied)
package service
