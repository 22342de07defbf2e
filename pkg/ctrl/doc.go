// Package ctrl provides a line-oriented control interface to a P2P2 device.
//
// Commands and event lines follow the wpa_supplicant control interface
// conventions used by P2P2 test suites:
//
//	iface := ctrl.New(dev)
//	id := iface.Request("NAN_PUBLISH service_name=_test srv_proto_type=2 ssi=6677 ttl=5 p2p=1")
//	line, err := iface.WaitEvent(ctx, "NAN-DISCOVERY-RESULT")
//
// Request returns FAIL for any command error; Do returns the error itself.
package ctrl
