// Package depth rejects operations whose selections nest deeper than a fixed
// bound. It works on the parsed document only and never executes anything.
//
// Root fields sit at depth 0 and every nested selection set adds one.
// Fragments are transparent: a spread or inline fragment contributes the
// depth of its own selections. Leaf fields and introspection fields (names
// starting with "__") add nothing.
package depth

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// DefaultMaxDepth is the bound used by the server unless configured.
const DefaultMaxDepth = 5

// Error describes one field that lies beyond the depth bound.
type Error struct {
	Operation string
	MaxDepth  int
	Depth     int
	Path      ast.Path
	Position  *ast.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("'%s' exceeds maximum operation depth of %d", e.Operation, e.MaxDepth)
}

// GQLError converts e into a located GraphQL error.
func (e *Error) GQLError() *gqlerror.Error {
	err := &gqlerror.Error{
		Message:    e.Error(),
		Path:       e.Path,
		Extensions: map[string]any{"code": "DEPTH_LIMIT_EXCEEDED"},
	}
	if e.Position != nil {
		err.Locations = []gqlerror.Location{{Line: e.Position.Line, Column: e.Position.Column}}
	}
	return err
}

// Validate checks every operation of doc. It returns one error per field
// that sits deeper than maxDepth, in document order; fields below a violating
// field are not examined.
func Validate(doc *ast.QueryDocument, maxDepth int) []*Error {
	var errs []*Error
	for _, op := range doc.Operations {
		w := &walker{
			doc:       doc,
			operation: op.Name,
			maxDepth:  maxDepth,
			active:    make(map[string]bool),
		}
		w.selections(op.SelectionSet, 0, nil)
		errs = append(errs, w.errs...)
	}
	return errs
}

// Depth returns the selection depth of op, counted the same way Validate
// counts it.
func Depth(doc *ast.QueryDocument, op *ast.OperationDefinition) int {
	w := &walker{doc: doc, maxDepth: -1, active: make(map[string]bool)}
	if n := w.selections(op.SelectionSet, 0, nil); n > 0 {
		return n - 1
	}
	return 0
}

// Errors converts validation errors into a gqlerror list.
func Errors(errs []*Error) gqlerror.List {
	if len(errs) == 0 {
		return nil
	}
	out := make(gqlerror.List, len(errs))
	for i, e := range errs {
		out[i] = e.GQLError()
	}
	return out
}

type walker struct {
	doc       *ast.QueryDocument
	operation string
	maxDepth  int // negative disables reporting
	active    map[string]bool
	errs      []*Error
}

// selections returns the number of counted levels in set, whose fields lie
// at depth d. A leaf counts one level and an introspection field none.
func (w *walker) selections(set ast.SelectionSet, d int, path ast.Path) int {
	deepest := 0
	for _, sel := range set {
		if n := w.selection(sel, d, path); n > deepest {
			deepest = n
		}
	}
	return deepest
}

func (w *walker) selection(sel ast.Selection, d int, path ast.Path) int {
	switch s := sel.(type) {
	case *ast.Field:
		if strings.HasPrefix(s.Name, "__") {
			return 0
		}
		fieldPath := appendPath(path, s)
		if w.maxDepth >= 0 && d > w.maxDepth {
			w.errs = append(w.errs, &Error{
				Operation: w.operation,
				MaxDepth:  w.maxDepth,
				Depth:     d,
				Path:      fieldPath,
				Position:  s.Position,
			})
			return 0
		}
		if len(s.SelectionSet) == 0 {
			return 1
		}
		return 1 + w.selections(s.SelectionSet, d+1, fieldPath)
	case *ast.InlineFragment:
		return w.selections(s.SelectionSet, d, path)
	case *ast.FragmentSpread:
		if w.active[s.Name] {
			return 0
		}
		frag := s.Definition
		if frag == nil {
			frag = w.doc.Fragments.ForName(s.Name)
		}
		if frag == nil {
			return 0
		}
		w.active[s.Name] = true
		defer delete(w.active, s.Name)
		return w.selections(frag.SelectionSet, d, path)
	}
	return 0
}

func appendPath(path ast.Path, f *ast.Field) ast.Path {
	name := f.Alias
	if name == "" {
		name = f.Name
	}
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, ast.PathName(name))
}
