package executor

import (
	language "github.com/hanpama/membergraph/internal/language"
	schema "github.com/hanpama/membergraph/internal/schema"
)

// collectedField is every field node sharing one response name.
type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

// collectedFieldMap groups field nodes by response name in query order.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

func (m *collectedFieldMap) add(field *language.Field) {
	name := field.Alias
	if name == "" {
		name = field.Name
	}
	if i, ok := m.index[name]; ok {
		m.fields[i].Fields = append(m.fields[i].Fields, field)
		return
	}
	m.index[name] = len(m.fields)
	m.fields = append(m.fields, collectedField{ResponseName: name, Fields: []*language.Field{field}})
}

func (m *collectedFieldMap) orderedFields() []collectedField {
	return m.fields
}

// collectFields flattens selectionSet for objectType, applying @skip,
// @include and fragment type conditions. A named fragment is expanded at most
// once per call.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	c := &fieldCollector{
		state:   state,
		object:  objectType,
		out:     &collectedFieldMap{index: make(map[string]int)},
		visited: make(map[string]bool),
	}
	c.collect(selectionSet)
	return c.out
}

type fieldCollector struct {
	state   *executionState
	object  *schema.Type
	out     *collectedFieldMap
	visited map[string]bool
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if shouldIncludeNode(c.state, sel.Directives) {
				c.out.add(sel)
			}
		case *language.InlineFragment:
			if shouldIncludeNode(c.state, sel.Directives) && doesFragmentTypeApply(c.state, c.object, sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !shouldIncludeNode(c.state, sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			def := c.state.document.Fragments.ForName(sel.Name)
			if def == nil || !doesFragmentTypeApply(c.state, c.object, def.TypeCondition) || !shouldIncludeNode(c.state, def.Directives) {
				continue
			}
			c.collect(def.SelectionSet)
		}
	}
}

// doesFragmentTypeApply reports whether a fragment on typeCondition selects
// fields of objectType, directly or through an interface or union.
func doesFragmentTypeApply(state *executionState, objectType *schema.Type, typeCondition string) bool {
	if typeCondition == "" || typeCondition == objectType.Name {
		return true
	}
	cond := state.schema.Types[typeCondition]
	if cond == nil {
		return false
	}
	switch cond.Kind {
	case schema.TypeKindInterface:
		for _, name := range objectType.Interfaces {
			if name == typeCondition {
				return true
			}
		}
		fallthrough
	case schema.TypeKindUnion:
		for _, name := range cond.PossibleTypes {
			if name == objectType.Name {
				return true
			}
		}
	}
	return false
}

// shouldIncludeNode evaluates @skip(if:) and @include(if:). A missing or
// non-boolean condition keeps the node.
func shouldIncludeNode(state *executionState, directives language.DirectiveList) bool {
	if skip, ok := directiveCondition(state, directives.ForName("skip")); ok && skip {
		return false
	}
	if include, ok := directiveCondition(state, directives.ForName("include")); ok && !include {
		return false
	}
	return true
}

func directiveCondition(state *executionState, d *language.Directive) (value, ok bool) {
	if d == nil {
		return false, false
	}
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	value, ok = valueFromASTWithVars(arg.Value, state.variableValues).(bool)
	return value, ok
}

func getFieldDefinition(objectType *schema.Type, fieldName string) *schema.Field {
	for _, field := range objectType.Fields {
		if field.Name == fieldName {
			return field
		}
	}
	return nil
}
