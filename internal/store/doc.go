// Package store keeps the most recent polling results and records in memory
// and publishes them to subscribers.
//
// This package is internal to uptrends and backs the optional HTTP server.
// It implements a publish-subscribe pattern so connected clients receive
// records and operation updates as soon as a cycle produces them.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub and a
//     bounded record history
//   - [OperationStatus]: Latest outcome of one operation
//   - [Event]: Update delivered to subscribers
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block a cycle).
package store
