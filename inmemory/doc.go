// Package inmemory provides map-backed reference implementations of the
// fortify store interfaces, plus a session, cookie jar, and mailer for
// use in tests and examples.
//
// All stores are safe for concurrent use and return copies, never
// internal pointers.  Entity rows get snowflake IDs; audit rows get
// ksuids.  Nothing here persists beyond the process.
package inmemory
