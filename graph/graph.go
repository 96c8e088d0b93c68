package graph

import (
	"context"
	"errors"
)

// END is a special constant used to represent the terminal node in the graph.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrUnknownEdge is returned when a router selects an edge key that is
	// not present in the node's declared edge map.
	ErrUnknownEdge = errors.New("router returned undeclared edge key")

	// ErrStepLimitExceeded is returned when a turn runs more steps than the
	// configured ceiling. Bounded retry counters are the primary loop guard;
	// the ceiling is defense in depth.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// State is the mutable turn state threaded through the graph.
type State = map[string]any

// NodeFunc is a single unit of work: it reads the state and returns a
// partial update. The executor overlays the update onto the running state,
// so a node only needs to return the keys it changed.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Router selects the next edge key from the current state. Routers must be
// pure and synchronous: they derive their decision entirely from fields
// already computed by earlier nodes in the turn, never from I/O.
type Router func(state State) string

// Node represents a node in the graph.
type Node struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function is the function associated with the node.
	Function NodeFunc
}

// conditionalEdge pairs a router with its declared edge map. The edge map
// makes the set of reachable successors explicit, so routing dead-ends are
// detectable at compile time for the declared keys and loud at runtime for
// undeclared ones.
type conditionalEdge struct {
	router  Router
	edgeMap map[string]string
}

// AlwaysRoute returns a Router that ignores state and always returns the
// same edge key. Useful for edge maps shared across nodes.
func AlwaysRoute(key string) Router {
	return func(State) string { return key }
}

// DefaultStepLimit bounds the number of node executions in one turn.
const DefaultStepLimit = 50
