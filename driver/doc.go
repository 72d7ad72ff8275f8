// Package driver turns a loaded guest into a bounded, pull-based sequence of
// stream events.
//
// Runner is an explicit state machine: Running{i} steps by querying
// is_done(i) and then next_frame(i); Ended is absorbing. Paced layers a
// ports.Pacer over any event source without touching its state.
package driver
