// Package gate implements the turnstile queue controller: a key-scoped,
// FIFO mutual-exclusion queue. Requests arrive, queue up behind the key
// they name, and are admitted one at a time; the next waiter advances only
// when a release signal for the current holder is applied.
//
// The controller is a pure state transition: Apply takes the persisted
// state plus one batch of arrivals and one batch of release signals, and
// returns the admissions decided in that invocation. Persistence, transport
// and delivery live in other packages; callers must serialize Apply calls
// per state instance.
package gate
