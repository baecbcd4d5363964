// Package poller runs the Uptrends polling cycle.
//
// This package is internal to uptrends and handles the timing and the HTTP
// side of polling. One cycle issues a request per registered operation in
// parallel and waits for all of them before returning.
//
// The main components are:
//
//   - [Client]: HTTP client with basic auth, retries, rate limiting and a
//     parallel [Batch] mode
//   - [Engine]: Runs one dispatch/collect cycle over a registry
//   - [Trigger]: Computes activation times for cron, every, at and in schedules
//   - [Driver]: Fires cycles from a trigger on a single worker
//
// Users of the uptrends library should not need to interact with this
// package directly. Configuration is done through the main uptrends package.
package poller
