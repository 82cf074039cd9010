// Package sinks contains gossipmember.Sink implementations which observe
// membership table changes: logging them, counting them for Prometheus,
// feeding a NodePicker, or recording them for later inspection.
//
// Stopping an engine clears its table without removal events.  Sinks which
// mirror the table (Picker, and the members gauge of Prometheus) implement
// gossipmember.StopObserver to reset themselves instead.
package sinks
