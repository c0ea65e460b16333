// Package sink renders comparison reports and delivers them.
//
// A core.Report is first converted to a [Document], the serialization-friendly
// form shared by every renderer. Renderers are registered by name in a format
// registry ("text", "json", "yaml", "html") and looked up with [LookupFormat].
//
// Sinks implement core.ReportSink:
//
//   - [FileSink] writes one file per format under a reports directory
//   - [ConsoleSink] prints to a terminal, optionally in color
//   - [SQLiteStore] and [PostgresStore] keep reports for later retrieval
//   - [Multi] fans a report out to several sinks
package sink
