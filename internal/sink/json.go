package sink

import (
	"encoding/json"
	"io"
)

func init() {
	RegisterFormat(Format{
		Name:        "json",
		Extension:   ".json",
		ContentType: "application/json",
		Render:      renderJSON,
	})
}

func renderJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
