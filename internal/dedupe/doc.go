// Package dedupe provides a bounded set of already-seen keys.
//
// The relay uses it to remember which assistant replies have been delivered
// so that a reply observed by more than one polling pass is persisted once.
// The set has no time-based expiry. When an insertion pushes it past
// capacity, the oldest half of the keys is dropped in a single pass, which
// keeps memory flat at the cost of forgetting old replies in bulk.
package dedupe
