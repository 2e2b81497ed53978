// Package backend moves the working database image between the process and
// durable storage.
//
// The Selector prefers a remote backend reached over HTTP and falls back to a
// local blob file when the remote is unreachable, has no path configured, or
// rejects a push. Images are opaque byte slices; this package never looks
// inside them.
//
// Remote contract:
//
//	GET    /health      200 when the server is up
//	GET    /db          raw image bytes (empty body when none)
//	POST   /db          replace the image (application/octet-stream)
//	GET    /db/path     {"path": "..."} or {"path": null}
//	POST   /db/path     {"path": "..."} configures where the image lives
//	DELETE /db/path     forget the configured path
//	GET    /db/info     {"configured": bool, "path": "..."}
//
// Every request carries an X-Request-ID header (UUIDv7 by default) so
// interleaved saves from separate processes can be told apart in server logs.
// Concurrent saves are last-write-wins.
//
// Server is a reference implementation of the contract that stores the
// image on local disk.
package backend
