// Package tunnel implements the tunnel signal controller: a single-threaded,
// tick-driven coordinator running four elapsed-time state machines over a
// shared set of output banks.
//
//   - approach warning (A): overheight vehicle on the approach road
//   - pedestrian crossing (B): button-triggered, also nested inside C
//   - side-road merge (C): vehicle waiting on the side road
//   - entrance warning (D): vehicle at the tunnel mouth
//
// A presence at the tunnel mouth raises an override that freezes A until the
// reset rule sees every sensor clear again. All timing is measured against
// an injected timeutil.Clock, so a MockClock drives whole scenarios in tests.
package tunnel
