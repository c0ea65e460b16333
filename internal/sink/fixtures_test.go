package sink

import (
	"time"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

const testReportID = "6f1c2b2e-4d7a-4c1e-9a55-0c1d2e3f4a5b"

var (
	testGeneratedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	partColumns     = []string{"Part Location", "Material", "PartNumber"}
)

func part(line int, loc, material, number string) core.Record {
	return core.NewRecord(line, partColumns, []core.Value{core.Text(loc), core.Text(material), core.Text(number)})
}

// sampleReport compares three snapshots under dir: the first pair has one
// added, one removed and one changed location, the second pair is skipped
// because the last snapshot lacks the key column.
func sampleReport(dir string) core.Report {
	v1 := core.Snapshot{Source: dir + "/v1.csv", Columns: partColumns, Records: []core.Record{
		part(2, "L1", "Glass", "P1"),
		part(3, "L2", "Steel", "P2"),
		part(4, "L3", "Wood", "P3"),
	}}
	v2 := core.Snapshot{Source: dir + "/v2.csv", Columns: partColumns, Records: []core.Record{
		part(2, "L1", "Glass", "P1"),
		part(3, "L2", "Alu", "P2"),
		part(4, "L4", "Stone", "P4"),
	}}
	renamed := []string{"Location", "Material", "PartNumber"}
	v3 := core.Snapshot{Source: dir + "/v3.csv", Columns: renamed, Records: []core.Record{
		core.NewRecord(2, renamed, []core.Value{core.Text("L1"), core.Text("Glass"), core.Text("P1")}),
	}}

	first := core.ComparePair(v1, v2, "Part Location")
	first.Index = 1
	second := core.ComparePair(v2, v3, "Part Location")
	second.Index = 2

	return core.Assemble([]core.ComparisonResult{first, second}, core.RunMetadata{
		ID:          testReportID,
		GeneratedAt: testGeneratedAt,
		KeyColumn:   "Part Location",
		Sources:     []string{v1.Source, v2.Source, v3.Source},
	})
}

func strPtr(s string) *string {
	return &s
}
