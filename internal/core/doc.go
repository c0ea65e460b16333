// Package core provides the business logic for comparing table snapshots.
//
// This package is the heart of snapdiff, containing all comparison logic
// independent of any file format, storage or transport. It can be used by the
// CLI, the web server, or tests without modification.
//
// # Architecture
//
// A comparison run takes an ordered series of snapshots and compares each
// consecutive pair:
//
//  1. Grouping: [GroupSnapshot] partitions records by the key column. Keys are
//     not unique; one key may hold many records (several parts at one location).
//  2. Comparison: [Compare] classifies every key as added, removed, changed or
//     unchanged, matching records of a shared key greedily by exact equality.
//  3. Assembly: [Assemble] turns the per-pair results into a [Report] with
//     added, removed and changed sections and a diagnostic for failed pairs.
//
// Loading and writing are delegated to a [SnapshotLoader] and a [ReportSink].
// [Service] wires the three stages to those collaborators:
//
//	svc := core.NewService(loader, sink, core.ServiceConfig{LoadConcurrency: 4})
//	res, err := svc.Run(ctx, core.RunRequest{
//	    Sources:   []string{"v1.csv", "v2.csv", "v3.csv"},
//	    KeyColumn: "Part Location",
//	})
//
// # Error Handling
//
// Fewer than two sources, a load failure and a sink failure stop the run. A
// missing key column or a schema mismatch only affects its pair: the pair is
// skipped and its section carries a [Diagnostic]. [MapError] maps any of these
// to a user-facing message with a support code.
package core
