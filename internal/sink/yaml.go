package sink

import (
	"io"

	"gopkg.in/yaml.v3"
)

func init() {
	RegisterFormat(Format{
		Name:        "yaml",
		Extension:   ".yaml",
		ContentType: "application/yaml",
		Render:      renderYAML,
	})
}

func renderYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
