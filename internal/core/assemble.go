package core

// Assemble converts comparison results into a Report. Deltas are split into
// added, removed and changed sections, each in comparator key order. A pair
// without deltas is marked NoDifferences, a failed pair carries a Diagnostic.
func Assemble(results []ComparisonResult, meta RunMetadata) Report {
	report := Report{
		ID:          meta.ID,
		GeneratedAt: meta.GeneratedAt,
		KeyColumn:   meta.KeyColumn,
		Sources:     append([]string(nil), meta.Sources...),
		Sections:    make([]Section, 0, len(results)),
	}
	if len(meta.Sources) > 0 {
		report.BaseSource = meta.Sources[0]
	} else if len(results) > 0 {
		report.BaseSource = results[0].Previous
	}

	for i, res := range results {
		report.Sections = append(report.Sections, assembleSection(i, res))
	}

	return report
}

func assembleSection(i int, res ComparisonResult) Section {
	sec := Section{
		Index:    res.Index,
		Previous: res.Previous,
		Current:  res.Current,
	}
	if sec.Index == 0 {
		sec.Index = i + 1
	}

	if res.Err != nil {
		msg := MapError(res.Err)
		sec.Diagnostic = &Diagnostic{Code: msg.Code, Message: res.Err.Error()}
		return sec
	}

	sec.Summary.KeysUnchanged = res.Unchanged
	for _, d := range res.Deltas {
		switch d.Kind {
		case KeyAdded:
			sec.Added = append(sec.Added, d)
			sec.Summary.KeysAdded++
			sec.Summary.RowsAdded += len(d.Records)
		case KeyRemoved:
			sec.Removed = append(sec.Removed, d)
			sec.Summary.KeysRemoved++
			sec.Summary.RowsRemoved += len(d.Records)
		case KeyChanged:
			sec.Changed = append(sec.Changed, d)
			sec.Summary.KeysChanged++
			for _, row := range d.Rows {
				switch row.Kind {
				case RowAdded:
					sec.Summary.RowsAdded++
				case RowRemoved:
					sec.Summary.RowsRemoved++
				case RowChanged:
					sec.Summary.RowsChanged++
				}
			}
		case KeyUnchanged:
			sec.Summary.KeysUnchanged++
		}
	}

	sec.NoDifferences = len(sec.Added) == 0 && len(sec.Removed) == 0 && len(sec.Changed) == 0
	return sec
}
