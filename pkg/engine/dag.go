package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DAGBuilder builds the compile-order graph over a document's declarations.
// An edge runs from a referenced declaration to the declaration referencing
// it, so every object is registered before anything that needs it.
type DAGBuilder struct {
	// decls maps declaration IDs to their declarations
	decls map[string]*Declaration

	// ids keeps declaration order for deterministic traversal
	ids []string

	// adjacencyList maps IDs to their dependents
	adjacencyList map[string][]string

	// reverseAdjacencyList maps IDs to their dependencies
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	// edges records every reference edge with the field carrying it
	edges []GraphEdge

	// levels maps topological level to declaration IDs at that level
	levels [][]string
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		decls:                make(map[string]*Declaration),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
		levels:               make([][]string, 0),
	}
}

// BuildGraph constructs the execution graph from declarations.
// References to IDs that are not declared add no edge; resolving them is the
// resolver's job and it reports them per component.
func (b *DAGBuilder) BuildGraph(decls []Declaration) (*ExecutionGraph, error) {
	if len(decls) == 0 {
		return &ExecutionGraph{
			Nodes:  make(map[string]*GraphNode),
			Edges:  make([]GraphEdge, 0),
			Roots:  make([]string, 0),
			Levels: make([][]string, 0),
			Depth:  0,
		}, nil
	}

	if err := b.initialize(decls); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildExecutionGraph(), nil
}

// initialize sets up the internal data structures from declarations.
func (b *DAGBuilder) initialize(decls []Declaration) error {
	for i := range decls {
		decl := &decls[i]
		if decl.ID == "" {
			return NewInvalidDocumentError("declaration has empty id", nil)
		}
		if _, exists := b.decls[decl.ID]; exists {
			return NewDuplicateIDError(decl.ID)
		}

		b.decls[decl.ID] = decl
		b.ids = append(b.ids, decl.ID)
		b.adjacencyList[decl.ID] = make([]string, 0)
		b.reverseAdjacencyList[decl.ID] = make([]string, 0)
		b.inDegree[decl.ID] = 0
	}

	for _, id := range b.ids {
		decl := b.decls[id]
		seen := make(map[string]bool)
		for _, ref := range decl.References {
			if _, exists := b.decls[ref.ID]; !exists {
				continue
			}
			b.edges = append(b.edges, GraphEdge{From: ref.ID, To: decl.ID, Field: ref.Field})
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true

			b.adjacencyList[ref.ID] = append(b.adjacencyList[ref.ID], decl.ID)
			b.reverseAdjacencyList[decl.ID] = append(b.reverseAdjacencyList[decl.ID], ref.ID)
			b.inDegree[decl.ID]++
		}
	}

	return nil
}

// detectCycles uses depth-first search to detect circular references.
func (b *DAGBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range b.ids {
		if !visited[id] {
			if cycle := b.detectCyclesUtil(id, visited, recStack, nil); cycle != nil {
				return NewDependencyCycleError(cycle)
			}
		}
	}

	return nil
}

// detectCyclesUtil performs DFS and returns the cycle path if one is found.
func (b *DAGBuilder) detectCyclesUtil(
	nodeID string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, dependent := range b.adjacencyList[nodeID] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			for i, id := range path {
				if id == dependent {
					cycle := append([]string(nil), path[i:]...)
					return append(cycle, dependent)
				}
			}
		}
	}

	recStack[nodeID] = false
	return nil
}

// computeLevels assigns levels with Kahn's algorithm. IDs are sorted within
// each level so the flattened order does not depend on map iteration.
func (b *DAGBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]string, 0)
	for _, id := range b.ids {
		if inDegreeCopy[id] == 0 {
			currentLevel = append(currentLevel, id)
		}
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		sort.Strings(currentLevel)
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, nodeID := range currentLevel {
			for _, dependent := range b.adjacencyList[nodeID] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}

		currentLevel = nextLevel
	}

	if processedCount != len(b.decls) {
		return NewInvalidDocumentError("failed to order all declarations", nil)
	}

	return nil
}

// buildExecutionGraph creates the final ExecutionGraph structure.
func (b *DAGBuilder) buildExecutionGraph() *ExecutionGraph {
	graph := &ExecutionGraph{
		Nodes:  make(map[string]*GraphNode),
		Edges:  append([]GraphEdge(nil), b.edges...),
		Roots:  make([]string, 0),
		Levels: b.levels,
		Depth:  len(b.levels),
	}

	for level, ids := range b.levels {
		for _, id := range ids {
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Kind:         b.decls[id].Kind,
				Level:        level,
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, id)
			}
		}
	}

	return graph
}

// ToDOT generates a DOT format representation of the graph for visualization.
// The output can be rendered with Graphviz tools.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph CompileOrder {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, ids := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, id := range ids {
			decl := b.decls[id]
			label := fmt.Sprintf("%s\\n%s", id, decl.Kind)
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				id, label, getKindColor(decl.Kind)))
		}

		sb.WriteString("  }\n\n")
	}

	for _, edge := range b.edges {
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\"];\n", edge.From, edge.To, edge.Field))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// getKindColor returns a color for visualizing declaration kinds.
func getKindColor(kind string) string {
	switch Capability(kind) {
	case CapabilityMicrophone:
		return "lightgreen"
	case CapabilitySpeaker, CapabilityMediaPlayer:
		return "lightblue"
	case CapabilityAudioRecorder:
		return "lightyellow"
	default:
		return "white"
	}
}

// ValidateGraph performs additional validation on the built graph.
func (b *DAGBuilder) ValidateGraph(graph *ExecutionGraph) error {
	if len(graph.Nodes) != len(b.decls) {
		return NewInvalidDocumentError("graph node count mismatch", nil)
	}

	for _, edge := range graph.Edges {
		if _, exists := graph.Nodes[edge.From]; !exists {
			return NewInvalidDocumentError(fmt.Sprintf("edge references non-existent node: %s", edge.From), nil)
		}
		if _, exists := graph.Nodes[edge.To]; !exists {
			return NewInvalidDocumentError(fmt.Sprintf("edge references non-existent node: %s", edge.To), nil)
		}
	}

	for _, rootID := range graph.Roots {
		if len(graph.Nodes[rootID].Dependencies) > 0 {
			return NewInvalidDocumentError(fmt.Sprintf("root node %s has dependencies", rootID), nil)
		}
	}

	return nil
}
