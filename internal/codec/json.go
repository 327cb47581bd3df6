package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSON round-trips documents through the same encoding the API serves
type JSON struct{}

// NewJSON creates a JSON codec
func NewJSON() *JSON {
	return &JSON{}
}

// Format returns the codec format identifier
func (c *JSON) Format() string {
	return "json"
}

// Parse reads a document from JSON
func (c *JSON) Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return &doc, nil
}

// Export writes a document as indented JSON
func (c *JSON) Export(doc *Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
