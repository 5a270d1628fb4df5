// Package logging formalizes the plain stdlib-log.Printf lines used
// throughout this agent (ingest progress, dispatch drops, sink errors)
// into a small set of leveled helpers, so every package tags its
// output the same way instead of hand-rolling its own prefix.
package logging

import "log"

// Infof logs a routine status line, e.g. component startup or a
// checkpoint write.
func Infof(format string, args ...interface{}) {
	log.Printf("INFO "+format, args...)
}

// Warnf logs a recoverable condition worth an operator's attention,
// e.g. a full sink queue or a failed sink publish.
func Warnf(format string, args ...interface{}) {
	log.Printf("WARN "+format, args...)
}

// Errorf logs a failure that did not stop the agent, e.g. a single
// record that failed to build or publish.
func Errorf(format string, args ...interface{}) {
	log.Printf("ERROR "+format, args...)
}

// Fatalf logs a failure and terminates the process, e.g. a replication
// connection that failed at startup or mid-stream.
func Fatalf(format string, args ...interface{}) {
	log.Fatalf("FATAL "+format, args...)
}
