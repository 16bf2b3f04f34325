// Package files finds Crystal 16 export files on disk and moves them once
// a batch run has handled them.
//
// Discovery lists CSV exports in a directory, optionally recursively. Hidden
// files, editor lock files and the *_processed.csv / *_series.csv outputs of
// the exporter are skipped so an output directory nested in the input
// directory is never re-read. Results are sorted by path.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/data")
//	exports, err := discovery.FindCSVFilesRecursive("exports")
//
//	manager := files.NewManager("/data", logger)
//	newPath, err := manager.MoveInto(exports[0].Path, "done")
package files
