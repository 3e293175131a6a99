// Package log wraps the standard library logger with named, leveled loggers
// for the storefront services.
//
// Every component asks for its own logger once and keeps it:
//
//	l := log.ForService("smartsearch")
//	l.Infof("autocomplete backend ready at %s", baseURL)
//	l.Debugf("GET %s took %s", u, elapsed) // only when debug is enabled
//
// Lines carry a `[name>]` marker after the level so output stays greppable
// when several sessions log at once:
//
//	2025/01/02 15:04:05.000000 INFO [web>] listening on http://localhost:8080
//
// Debug output is off by default. It can be enabled for the whole process
// (SetGlobalDebug, wired to the --debug flag) or for a single service
// (EnableDebugFor), which is handy when chasing stale responses in one widget
// session without flooding the log with upstream payloads.
//
// Tests redirect output with SetOutput(&buf) and assert on the buffer.
//
// All exported functions are safe for concurrent use.
package log
