// Package events implements the lifecycle event names and the two
// notification channels a request object exposes for each of them: a single
// assignable handler and an ordered list of listeners.
package events
