package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// ReportDirName is the directory created next to the first snapshot when no
// report directory is configured.
const ReportDirName = "reports"

// FileSink writes one report file per configured format.
//
//	<dir>/<base>_comparison_<YYYYmmdd_HHMMSS>.txt
type FileSink struct {
	Dir     string   // Output directory, empty for "reports" next to the base source
	Formats []string // Format names, default "text"
	Title   string
}

// Write renders report in every format and returns the written paths,
// comma-separated.
func (s *FileSink) Write(ctx context.Context, report core.Report) (string, error) {
	dir := s.dir(report.BaseSource)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &core.SinkError{Location: dir, Err: err}
	}

	formats := s.Formats
	if len(formats) == 0 {
		formats = []string{"text"}
	}

	doc := NewDocument(report, s.Title)
	paths := make([]string, 0, len(formats))
	for _, name := range formats {
		if err := ctx.Err(); err != nil {
			return "", &core.SinkError{Location: dir, Err: err}
		}

		f, ok := LookupFormat(name)
		if !ok {
			return "", &core.SinkError{Location: dir, Err: fmt.Errorf("unknown format %q", name)}
		}

		path := filepath.Join(dir, FileName(report, f.Extension))
		if err := writeFileAtomic(path, f, doc); err != nil {
			return "", &core.SinkError{Location: path, Err: err}
		}
		paths = append(paths, path)
	}

	logging.FromContext(ctx).Debug("report files written", "paths", paths)
	return strings.Join(paths, ","), nil
}

func (s *FileSink) dir(base string) string {
	if s.Dir != "" {
		return s.Dir
	}
	if base == "" {
		return ReportDirName
	}
	if !isFileSource(base) {
		return ReportDirName
	}
	return filepath.Join(filepath.Dir(strings.TrimPrefix(base, "csv:")), ReportDirName)
}

// FileName returns the report file name for report with the given extension.
func FileName(report core.Report, ext string) string {
	name := DisplayName(report.BaseSource)
	if isFileSource(report.BaseSource) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	base := sanitizeName(name)
	if base == "" {
		base = "snapshot"
	}
	return fmt.Sprintf("%s_comparison_%s%s", base, report.GeneratedAt.Format("20060102_150405"), ext)
}

// sanitizeName keeps letters, digits, dots, dashes and underscores.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

// writeFileAtomic renders into a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, f Format, doc *Document) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapdiff-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = f.Render(tmp, doc); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
