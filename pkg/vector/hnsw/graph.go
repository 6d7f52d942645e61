package hnsw

import "encoding/json"

// node is one HNSW graph node: its level and, for each level it
// participates in, the labels of its bidirectional neighbors.
type node struct {
	Label     int64     `json:"label"`
	Level     int       `json:"level"`
	Neighbors [][]int64 `json:"neighbors"`
}

// graphState is the entire graph topology, serialized as one blob at the
// index's "graph" key (§3 storage layout, §4.H).
type graphState struct {
	HasEntry   bool             `json:"has_entry"`
	EntryLabel int64            `json:"entry_label"`
	TopLevel   int              `json:"top_level"`
	Nodes      map[int64]*node  `json:"nodes"`
}

func newGraphState() *graphState {
	return &graphState{Nodes: make(map[int64]*node)}
}

func decodeGraph(raw []byte) (*graphState, error) {
	if raw == nil {
		return newGraphState(), nil
	}
	var g graphState
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	if g.Nodes == nil {
		g.Nodes = make(map[int64]*node)
	}
	return &g, nil
}

func (g *graphState) encode() ([]byte, error) {
	return json.Marshal(g)
}

func removeLabel(labels []int64, target int64) []int64 {
	out := labels[:0]
	for _, l := range labels {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

func containsLabel(labels []int64, target int64) bool {
	for _, l := range labels {
		if l == target {
			return true
		}
	}
	return false
}
