package graphql

import (
	"fmt"
	"io"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// WriteSchema validates the embedded SDL and writes it to w in canonical
// form, for client code generators.
func WriteSchema(w io.Writer) error {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
	if err != nil {
		return fmt.Errorf("load graphql schema: %w", err)
	}
	formatter.NewFormatter(w, formatter.WithIndent("  ")).FormatSchema(schema)
	return nil
}
