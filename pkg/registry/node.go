package registry

import (
	"fmt"

	"github.com/salahayoub/blockvote/pkg/types"
)

// NodeInfo is the last known state of one node. Entries are created when a
// node is first seen and kept after it goes offline.
type NodeInfo struct {
	Port            int
	Nodes           []int
	BlockchainCount int
	Online          bool
	IsMiner         bool
	// Mining is the block index being mined, nil when idle.
	Mining *int
}

// Role returns "Miner" or "Node".
func (n NodeInfo) Role() string {
	if n.IsMiner {
		return "Miner"
	}
	return "Node"
}

// Label returns the short display name, e.g. "Miner 5001".
func (n NodeInfo) Label() string {
	return fmt.Sprintf("%s %d", n.Role(), n.Port)
}

// clone copies the slices so callers can't reach into the registry.
func (n NodeInfo) clone() NodeInfo {
	n.Nodes = append([]int(nil), n.Nodes...)
	if n.Mining != nil {
		m := *n.Mining
		n.Mining = &m
	}
	return n
}

func infoFromSnapshot(port int, snap types.NodeSnapshot) NodeInfo {
	return NodeInfo{
		Port:            port,
		Nodes:           snap.Nodes,
		BlockchainCount: snap.BlockchainCount,
		Online:          true,
		IsMiner:         snap.IsMiner,
		Mining:          snap.Mining,
	}.clone()
}

// Vertex is a node in the cluster graph.
type Vertex struct {
	Port  int
	Label string
}

// Edge points from a node to a neighbor it reports.
type Edge struct {
	From int
	To   int
}

// Graph is the cluster topology as seen by online nodes.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

// BuildGraph derives the topology from a node list. Only online nodes
// contribute vertices and edges.
func BuildGraph(nodes []NodeInfo) Graph {
	var g Graph
	for _, n := range nodes {
		if !n.Online {
			continue
		}
		g.Vertices = append(g.Vertices, Vertex{
			Port:  n.Port,
			Label: fmt.Sprintf("%s [%d]", n.Label(), n.BlockchainCount),
		})
		for _, peer := range n.Nodes {
			g.Edges = append(g.Edges, Edge{From: n.Port, To: peer})
		}
	}
	return g
}
