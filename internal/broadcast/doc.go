// Package broadcast tracks the open viewer connections and fans envelopes out
// to them.
//
// The Registry is an actor: one goroutine owns the membership map and every
// operation is a command on its channel. Each connection has its own writer
// goroutine with a bounded queue, so a slow viewer is evicted instead of
// holding up the others.
package broadcast
