// Package main hosts the pressline CLI entrypoint and command graph.
//
// "serve" runs the daemon. Every other command opens the configured record
// store directly, so jobs, users, and press queues can be managed with or
// without a running daemon. Mutating commands act as the employee named by
// --as.
package main
