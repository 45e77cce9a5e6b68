package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// DepthRejected is emitted when an operation is refused for exceeding the
// maximum selection depth. No resolver runs for such an operation.
type DepthRejected struct {
	OperationName string
	MaxDepth      int
	Violations    int
}
