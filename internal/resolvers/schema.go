package resolvers

import (
	_ "embed"

	"github.com/hanpama/membergraph/internal/schema"
)

// SDL is the executable schema served by the runtime.
//
//go:embed schema.graphql
var SDL string

// LoadSchema builds the executable schema from SDL.
func LoadSchema() (*schema.Schema, error) {
	return schema.BuildFromSDL("schema.graphql", SDL)
}
