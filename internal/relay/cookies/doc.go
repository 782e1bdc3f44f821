// Package cookies provides the process-wide cookie jar shared by every
// loaded module.
//
// The jar holds one concatenated Cookie header value per origin
// (scheme://host[:port], lower-case host, default ports dropped). Each
// origin has its own lock: a read-modify-write on one origin is atomic and
// never blocks another origin. Writes go through to a Store so the jar
// survives restarts when a FileStore is configured.
package cookies
