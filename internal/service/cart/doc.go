// Package cart implements the cart lifecycle tracker: webhook-driven upserts
// of cart snapshots, conversion on order completion, and the recency
// heuristic that attaches a lazily-learned email to an in-flight cart.
//
// The tracker owns no state of its own; every read and write goes through
// the Repository contract, and the repository's single-statement upsert is
// what makes concurrent webhooks for the same cart safe.
package cart
