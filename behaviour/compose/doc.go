package compose

// This file sketches the pattern FanOut is meant to support: a
// composite NetworkBehaviour is a small hand-written struct with a
// sum OutEvent type and one FanOut field, plus whatever
// HandleEstablished{Inbound,Outbound}Connection logic the composite
// needs to merge its children's handlers for a single connection.
//
//	type PingEvent struct{ RTT time.Duration }
//	type IdentifyEvent struct{ Agent string }
//
//	type ExampleEvent struct {
//		Ping     *PingEvent
//		Identify *IdentifyEvent
//	}
//
//	type Example struct {
//		fanOut *FanOut[ExampleEvent]
//	}
//
//	func NewExample(ping coreswarm.NetworkBehaviour[PingEvent], identify coreswarm.NetworkBehaviour[IdentifyEvent]) *Example {
//		return &Example{fanOut: NewFanOut[ExampleEvent](
//			adaptPing(ping),
//			adaptIdentify(identify),
//		)}
//	}
//
// adaptPing and adaptIdentify are small wrappers (one per child) that
// forward every NetworkBehaviour method to the wrapped child except
// Poll, where they convert the child's own event type into the
// composite's sum type before returning it — that conversion is the
// "sum type" half of the pattern FanOut does not do for you.
