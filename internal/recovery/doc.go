// Package recovery contains the abandonment sweeps and the delivery gate.
// The cart sweep walks the reminder stage ladder for abandoned carts; the
// browse sweep sends one message per shopper covering their recently
// viewed products. Both run on independent tickers, hold a distributed
// lock for the duration of each cycle, and treat the delivery API as the
// commit point: state is flagged only after a send succeeds.
package recovery
