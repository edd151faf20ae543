// Package loader provides the typed loading layer above internal/load:
// a Base that wraps the batch client with per-operation logging and
// metrics bookkeeping, and domain loaders (awards, organizations,
// agencies) that flatten typed records into property bags and drive the
// right load primitive for each entity.
package loader
