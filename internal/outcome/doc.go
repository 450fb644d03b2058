// Package outcome serializes the delivery of asynchronous operation results
// to a single logical consumer. Worker goroutines hand completed results to
// the dispatcher; one goroutine drains them to the sink in completion order,
// never concurrently, mirroring a single-threaded event-consumption model.
package outcome
