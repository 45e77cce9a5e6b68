package schema

// Builtin scalars and executable directives. Render skips these by identity.
var (
	stringType  = NewType("String", TypeKindScalar, "The `String` scalar type represents textual data, represented as UTF-8 character sequences.")
	intType     = NewType("Int", TypeKindScalar, "The `Int` scalar type represents non-fractional signed whole numeric values.")
	floatType   = NewType("Float", TypeKindScalar, "The `Float` scalar type represents signed double-precision fractional values.")
	booleanType = NewType("Boolean", TypeKindScalar, "The `Boolean` scalar type represents `true` or `false`.")
	idType      = NewType("ID", TypeKindScalar, "The `ID` scalar type represents a unique identifier.")

	includeDirective = executableDirective("include", "Directs the executor to include this field or fragment only when the `if` argument is true.", "Included when true.")
	skipDirective    = executableDirective("skip", "Directs the executor to skip this field or fragment when the `if` argument is true.", "Skipped when true.")
)

// LoadDirective marks a field whose value is produced by a resolver
// rather than read from its parent object.
const LoadDirective = "load"

func executableDirective(name, description, ifDescription string) *Directive {
	d := NewDirective(name, description).
		AddArgument(NewInputValue("if", ifDescription, NonNullType(NamedType("Boolean"))))
	d.Locations = []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}
	return d
}

func builtinType(name string) *Type {
	switch name {
	case "String":
		return stringType
	case "Int":
		return intType
	case "Float":
		return floatType
	case "Boolean":
		return booleanType
	case "ID":
		return idType
	}
	return nil
}

func isBuiltinDirective(name string) bool {
	switch name {
	case "include", "skip", "deprecated", "specifiedBy", "oneOf", "defer", LoadDirective:
		return true
	}
	return false
}
