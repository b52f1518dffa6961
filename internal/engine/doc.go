// Package engine implements the speller's single-writer event loop.
//
// ARCHITECTURE:
//
// Two independent producers feed one FIFO queue:
//   - the flash scheduler, once per interval, under its own lock
//   - the probability monitor, whenever a sample crosses the threshold
//
// Commands (start, stop, reset) and stream loss go through the same queue.
// Engine.Run dequeues events one at a time, so no two decode attempts
// interleave and every transition sees the flashes that were observed
// before it.
//
// Event Processing Flow:
//  1. A producer enqueues an event stamped with its generation
//  2. Run dequeues it and drops it if that generation has been stopped
//  3. Flashes are appended to the bounded flash log
//  4. Triggers run the decoder against the most recent flash
//  5. Every accepted event is journaled through the optional Recorder,
//     stamped with a logical seq from the Sequencer
//
// Stop is a barrier on both producers. StopFlashing returns only after the
// scheduler can no longer emit; Detach returns only after the monitor can
// no longer trigger. Events they produced earlier may still sit in the
// queue, which is why the loop checks generations.
//
// Replay re-runs a recorded journal through a fresh decoder. It shares no
// state with a live engine and needs no queue: journal order is the
// processing order.
package engine
