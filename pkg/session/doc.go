// Package session implements the unit-of-work (§4.I): a change-set of
// pending inserts and deletes, a Save algorithm that commits the whole
// change-set atomically against the store, and an optional debounced
// autosave timer grounded on the teacher's reconcile-loop idiom
// (pkg/reconciler) adapted to a one-shot coalesced deferral instead of a
// recurring ticker.
package session
