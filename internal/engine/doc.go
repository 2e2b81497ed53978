// Package engine is the cyclelog facade.
//
// An Engine owns the working SQLite database and the backend selector. Open
// loads the newest image (remote first, local fallback second), materializes
// it at the work path and upgrades the schema. Every mutating call then runs
// against the store and finishes by exporting the whole image and handing it
// to the selector. Reads never touch the backends.
//
// Public methods are serialized by a mutex, so a mutation and its image save
// cannot interleave with another call on the same Engine. Separate processes
// are not coordinated: concurrent saves from two processes race and the last
// one wins.
package engine
