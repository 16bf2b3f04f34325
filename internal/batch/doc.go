// Package batch runs a directory of Crystal 16 exports through the whole
// pipeline: discover, load, validate, skip the tune and load samples,
// bucket, export, store and archive.
//
// Files are handled by a bounded pool of workers. A failing file is logged
// and reported without stopping the others unless Options.FailFast is set.
// The summary file is appended after all workers finish, in discovery
// order, so its content does not depend on scheduling.
package batch
