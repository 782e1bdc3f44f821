// Package catalog discovers module source files on disk and loads them into
// a runtime.
//
// A catalog directory is walked with fastwalk. Every regular file whose path
// relative to the root matches the doublestar pattern (default "**/*.js")
// becomes an Entry named after that relative path without its extension.
//
//	entries, err := catalog.Scan(ctx, "modules", catalog.DefaultPattern)
//	report := catalog.Load(ctx, runtime, entries, catalog.WithParallelism(4))
//
// Modules that fail to load are logged and skipped; they never abort the rest
// of the catalog.
package catalog
