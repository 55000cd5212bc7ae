// Package supervisor keeps a coordinator running across link loss.
//
// A Supervisor runs a start function once and then waits for the adapter
// to report a disconnect. Each loss triggers restart attempts with
// exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds, repeated until a start succeeds
//  4. Reset to 1s after a successful start
//
// A random jitter of up to a quarter of the delay is added so that several
// hosts sharing a network coordinator do not reconnect in lockstep.
//
// Supervisor implements zstack.Observer; register it with
// Adapter.AddObserver to have disconnects trigger restarts.
package supervisor
