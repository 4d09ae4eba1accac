// Package browse implements the browse lifecycle tracker: append-only
// recording of product-page views and the eligibility selection used by the
// browse-recovery sweep (latest view per product, ranked by recency).
package browse
