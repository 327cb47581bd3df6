// Package codec translates graph documents to and from external formats
// for the import and export endpoints.
package codec

import (
	"fmt"
	"io"

	"netviz/internal/domain"
)

// Document is a flat, storage-independent view of the graph. Exported
// documents carry full entity state; imported ones may omit IDs, and
// their edge endpoints may name nodes instead of identifying them.
type Document struct {
	Nodes []*domain.Node `json:"nodes"`
	Edges []*domain.Edge `json:"edges"`
}

// Importer parses a document from an external format
type Importer interface {
	Parse(r io.Reader) (*Document, error)
	Format() string
}

// Exporter writes a document in an external format
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ByFormat returns the codec for a format identifier
func ByFormat(format string) (Codec, error) {
	switch format {
	case "json":
		return NewJSON(), nil
	case "yaml":
		return NewYAML(), nil
	case "ansible-inventory":
		return NewAnsibleInventory(), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// ContentType returns the MIME type served for a codec's exports
func ContentType(c Codec) string {
	if c.Format() == "json" {
		return "application/json"
	}
	return "application/x-yaml"
}
