// Package market maintains the in-memory market catalog.
//
// The Registry discovers markets over the CLOB REST API, keeps each
// market's outcome tokens indexed for stream subscription, and
// periodically reconciles against the exchange listing, emitting
// CatalogChange notifications as markets list, update, or delist.
// Market metadata never touches the database; everything downstream
// reads it from here.
package market
