package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smallnest/turnflow/log"
)

// StateGraph builds a directed graph of nodes over a shared turn state.
// Nodes hold the work, edges the control flow: either a single
// unconditional successor, or a router paired with a declared edge map.
type StateGraph struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node

	// edges maps a node to its unconditional successor
	edges map[string]string

	// conditionalEdges maps a node to its router and declared edge map
	conditionalEdges map[string]conditionalEdge

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// schema defines the state update logic
	schema *Schema

	// stepLimit bounds node executions per turn
	stepLimit int
}

// NewStateGraph creates a new StateGraph with the default conversational
// schema and step limit.
func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes:            make(map[string]Node),
		edges:            make(map[string]string),
		conditionalEdges: make(map[string]conditionalEdge),
		schema:           DefaultSchema(),
		stepLimit:        DefaultStepLimit,
	}
}

// AddNode adds a new node to the graph with the given name, description and function.
func (g *StateGraph) AddNode(name string, description string, fn NodeFunc) {
	g.nodes[name] = Node{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds an unconditional edge between the "from" and "to" nodes.
func (g *StateGraph) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddConditionalEdges registers a router for "from" together with its
// declared edge map. The router's return value is looked up in the edge
// map to find the successor; returning an undeclared key is a routing
// dead-end and fails the turn loudly.
func (g *StateGraph) AddConditionalEdges(from string, router Router, edgeMap map[string]string) {
	g.conditionalEdges[from] = conditionalEdge{
		router:  router,
		edgeMap: edgeMap,
	}
}

// SetEntryPoint sets the entry point node name for the graph.
func (g *StateGraph) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetSchema replaces the state update schema.
func (g *StateGraph) SetSchema(schema *Schema) {
	g.schema = schema
}

// SetStepLimit overrides the per-turn execution ceiling.
func (g *StateGraph) SetStepLimit(limit int) {
	if limit > 0 {
		g.stepLimit = limit
	}
}

// Compile validates the graph and returns a Runnable. Validation catches
// structural defects early: a missing entry point, edges pointing at
// unknown nodes, and non-terminal nodes with no way out.
func (g *StateGraph) Compile() (*Runnable, error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}

	for from, to := range g.edges {
		if err := g.checkTarget(from, to); err != nil {
			return nil, err
		}
	}
	for from, ce := range g.conditionalEdges {
		for key, to := range ce.edgeMap {
			if err := g.checkTarget(from+"/"+key, to); err != nil {
				return nil, err
			}
		}
	}

	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasConditional := g.conditionalEdges[name]
		if !hasEdge && !hasConditional {
			return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
		}
	}

	return &Runnable{graph: g}, nil
}

func (g *StateGraph) checkTarget(from, to string) error {
	if to == END {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: edge %s -> %s", ErrNodeNotFound, from, to)
	}
	return nil
}

// Runnable is a compiled state graph that can be invoked for one turn.
type Runnable struct {
	graph *StateGraph
}

// Invoke executes one turn, following router decisions from the entry
// point until END.
//
// Failure semantics: an error (or panic) inside a node is captured at the
// node boundary and converted into state fields (task_status "error" and a
// human-readable "error"), preserving partial results computed by earlier
// nodes; Invoke returns the error-marked state with a nil error. A non-nil
// error is only returned for structural defects in the graph itself: an
// undeclared edge key, a missing node, or the step ceiling.
func (r *Runnable) Invoke(ctx context.Context, initialState State) (State, error) {
	state := initialState
	if state == nil {
		state = r.graph.schema.Init()
	}

	runID := uuid.NewString()[:8]
	current := r.graph.entryPoint
	steps := 0

	for current != END {
		steps++
		if steps > r.graph.stepLimit {
			return state, fmt.Errorf("%w: %d steps (run %s)", ErrStepLimitExceeded, steps, runID)
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		log.Debug("run %s step %d: node %s", runID, steps, current)

		update, err := r.executeNode(ctx, node, state)
		if err != nil {
			log.Warn("run %s: node %s failed: %v", runID, current, err)
			return r.failState(state, current, err)
		}

		state, err = r.graph.schema.Update(state, update)
		if err != nil {
			return r.failState(state, current, err)
		}

		current, err = r.nextNode(current, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

// executeNode calls the node function with panic recovery, so a panicking
// node degrades into a node failure instead of tearing down the turn.
func (r *Runnable) executeNode(ctx context.Context, node Node, state State) (update State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in node %s: %v", node.Name, rec)
		}
	}()
	return node.Function(ctx, state)
}

// failState marks the turn as failed while keeping everything computed so
// far. The message is set as the response too, so callers that only read
// the response still get a human-readable explanation.
func (r *Runnable) failState(state State, nodeName string, cause error) (State, error) {
	message := fmt.Sprintf("node %s: %v", nodeName, cause)
	update := State{
		"task_status": "error",
		"error":       message,
		"response":    message,
	}
	failed, err := r.graph.schema.Update(state, update)
	if err != nil {
		// Schema failure while recording a failure; fall back to mutation-free overlay.
		failed = make(State, len(state)+3)
		for k, v := range state {
			failed[k] = v
		}
		failed["task_status"] = "error"
		failed["error"] = message
		failed["response"] = message
	}
	return failed, nil
}

func (r *Runnable) nextNode(current string, state State) (string, error) {
	if ce, ok := r.graph.conditionalEdges[current]; ok {
		key := ce.router(state)
		next, declared := ce.edgeMap[key]
		if !declared {
			return "", fmt.Errorf("%w: node %s key %q", ErrUnknownEdge, current, key)
		}
		return next, nil
	}

	if next, ok := r.graph.edges[current]; ok {
		return next, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
}

// Graph returns the underlying graph, e.g. for visualization.
func (r *Runnable) Graph() *StateGraph {
	return r.graph
}
