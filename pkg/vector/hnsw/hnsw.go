package hnsw

import (
	"container/heap"
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/vector"
)

// Predicate evaluates whether a candidate id should be admitted into an
// ACORN-filtered search's result set. It is evaluated against the concrete
// record the caller fetches for id, so the predicate closure typically
// wraps a session/store lookup.
type Predicate func(id tuple.Tuple) (bool, error)

// Index is an HNSW vector index rooted at an already-resolved subspace
// prefix.
type Index struct {
	subspace []byte
	metric   vector.Metric
	dim      int
	cfg      Config
}

// NewIndex builds an HNSW Index over subspace with the given metric,
// vector dimension, and tuning config.
func NewIndex(subspace []byte, metric vector.Metric, dim int, cfg Config) *Index {
	return &Index{subspace: append([]byte(nil), subspace...), metric: metric, dim: dim, cfg: cfg}
}

// NodeCount reports the number of vectors currently held in the graph, for
// administrative introspection (the admin CLI's `vector stats`).
func (idx *Index) NodeCount(ctx context.Context, tx kv.Transaction) (int64, error) {
	return idx.readCounter(ctx, tx, nodeCountSuffix)
}

// Insert adds id/vec to the graph. Returns ErrGraphTooLarge if the graph
// has already reached Config.MaxInlineNodes.
func (idx *Index) Insert(ctx context.Context, tx kv.Transaction, id tuple.Tuple, vec []float64) error {
	if len(vec) != idx.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), idx.dim)
	}

	nodeCount, err := idx.readCounter(ctx, tx, nodeCountSuffix)
	if err != nil {
		return err
	}
	if nodeCount >= int64(idx.cfg.MaxInlineNodes) {
		return ErrGraphTooLarge
	}

	g, err := idx.loadGraph(ctx, tx)
	if err != nil {
		return err
	}

	label, err := idx.allocateLabel(ctx, tx)
	if err != nil {
		return err
	}

	if err := idx.storeVectorAndMapping(tx, id, label, vec); err != nil {
		return err
	}

	cache := newVectorCache(ctx, tx, idx)
	cache.put(label, vec)

	newLevel := sampleLevel(idx.cfg.M)
	n := &node{Label: label, Level: newLevel, Neighbors: make([][]int64, newLevel+1)}
	g.Nodes[label] = n

	if !g.HasEntry {
		g.HasEntry = true
		g.EntryLabel = label
		g.TopLevel = newLevel
	} else {
		if err := idx.wireNewNode(cache, g, n, vec, newLevel); err != nil {
			return err
		}
		if newLevel > g.TopLevel {
			g.TopLevel = newLevel
			g.EntryLabel = label
		}
	}

	if err := idx.saveGraph(tx, g); err != nil {
		return err
	}
	idx.incrementCounter(tx, nodeCountSuffix, 1)
	metrics.HNSWNodeCount.WithLabelValues(idx.metricLabel()).Inc()
	return nil
}

// metricLabel identifies this index instance for per-index metrics, since an
// Index carries no name of its own, only a resolved subspace prefix.
func (idx *Index) metricLabel() string {
	return hex.EncodeToString(idx.subspace)
}

func (idx *Index) wireNewNode(cache *vectorCache, g *graphState, n *node, vec []float64, newLevel int) error {
	entry, err := idx.greedyDescend(cache, g, vec, g.TopLevel, newLevel)
	if err != nil {
		return err
	}

	top := newLevel
	if g.TopLevel < top {
		top = g.TopLevel
	}
	for level := top; level >= 0; level-- {
		candidates, err := idx.searchLayer(cache, g, vec, entry, level, idx.cfg.EfConstruction)
		if err != nil {
			return err
		}
		if len(candidates) > 0 {
			entry = candidates[0].label
		}

		mMax := idx.mMaxFor(level)
		selected := candidates
		if len(selected) > mMax {
			selected = selected[:mMax]
		}
		n.Neighbors[level] = labelsOf(selected)

		for _, s := range selected {
			neighbor := g.Nodes[s.label]
			if neighbor == nil || level >= len(neighbor.Neighbors) {
				continue
			}
			neighbor.Neighbors[level] = append(neighbor.Neighbors[level], n.Label)
			if len(neighbor.Neighbors[level]) > mMax {
				if err := idx.pruneNeighbor(cache, g, neighbor, level, mMax); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (idx *Index) pruneNeighbor(cache *vectorCache, g *graphState, n *node, level, mMax int) error {
	vec, err := cache.get(n.Label)
	if err != nil {
		return err
	}
	scoredNeighbors := make([]scored, 0, len(n.Neighbors[level]))
	for _, label := range n.Neighbors[level] {
		nv, err := cache.get(label)
		if err != nil {
			continue
		}
		scoredNeighbors = append(scoredNeighbors, scored{label: label, dist: vector.Distance(idx.metric, vec, nv)})
	}
	sort.Slice(scoredNeighbors, func(i, j int) bool { return scoredNeighbors[i].dist < scoredNeighbors[j].dist })
	if len(scoredNeighbors) > mMax {
		scoredNeighbors = scoredNeighbors[:mMax]
	}
	n.Neighbors[level] = labelsOf(scoredNeighbors)
	return nil
}

// Delete removes id from the graph, rewiring its neighbors so connectivity
// among the survivors is preserved, nearest-first, up to each level's
// neighbor budget.
func (idx *Index) Delete(ctx context.Context, tx kv.Transaction, id tuple.Tuple) error {
	labelKeyBytes, err := idx.labelKey(id)
	if err != nil {
		return err
	}
	raw, err := tx.Get(ctx, labelKeyBytes)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	label, err := tuple.DecodeTyped[int64](raw)
	if err != nil {
		return fmt.Errorf("hnsw: decoding label: %w", err)
	}

	g, err := idx.loadGraph(ctx, tx)
	if err != nil {
		return err
	}
	n := g.Nodes[label]
	if n == nil {
		tx.Clear(labelKeyBytes)
		return nil
	}

	cache := newVectorCache(ctx, tx, idx)
	for level := 0; level <= n.Level; level++ {
		neighbors := n.Neighbors[level]
		for _, nb := range neighbors {
			if nbNode := g.Nodes[nb]; nbNode != nil && level < len(nbNode.Neighbors) {
				nbNode.Neighbors[level] = removeLabel(nbNode.Neighbors[level], label)
			}
		}
		if err := idx.rewireSurvivors(cache, g, neighbors, level, idx.mMaxFor(level)); err != nil {
			return err
		}
	}
	delete(g.Nodes, label)

	if g.EntryLabel == label {
		replaceEntryPoint(g)
	}

	if err := idx.saveGraph(tx, g); err != nil {
		return err
	}

	vecKey, err := idx.vectorKey(label)
	if err != nil {
		return err
	}
	idKeyBytes, err := idx.idKey(label)
	if err != nil {
		return err
	}
	tx.Clear(vecKey)
	tx.Clear(idKeyBytes)
	tx.Clear(labelKeyBytes)
	idx.incrementCounter(tx, nodeCountSuffix, -1)
	metrics.HNSWNodeCount.WithLabelValues(idx.metricLabel()).Dec()
	return nil
}

func replaceEntryPoint(g *graphState) {
	bestLevel := -1
	var bestLabel int64
	found := false
	for label, n := range g.Nodes {
		if n.Level > bestLevel {
			bestLevel = n.Level
			bestLabel = label
			found = true
		}
	}
	g.HasEntry = found
	g.EntryLabel = bestLabel
	if found {
		g.TopLevel = bestLevel
	} else {
		g.TopLevel = 0
	}
}

// rewireSurvivors connects up to mMax nearest-first pairs among a deleted
// node's former neighbors at one level, so removing a hub node doesn't
// disconnect its neighborhood.
func (idx *Index) rewireSurvivors(cache *vectorCache, g *graphState, neighbors []int64, level, mMax int) error {
	type pair struct {
		a, b int64
		dist float64
	}
	var pairs []pair
	for i := 0; i < len(neighbors); i++ {
		for j := i + 1; j < len(neighbors); j++ {
			a, b := neighbors[i], neighbors[j]
			if g.Nodes[a] == nil || g.Nodes[b] == nil {
				continue
			}
			va, err := cache.get(a)
			if err != nil {
				continue
			}
			vb, err := cache.get(b)
			if err != nil {
				continue
			}
			pairs = append(pairs, pair{a, b, vector.Distance(idx.metric, va, vb)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })

	connected := 0
	for _, p := range pairs {
		if connected >= mMax {
			break
		}
		na, nb := g.Nodes[p.a], g.Nodes[p.b]
		if level >= len(na.Neighbors) || level >= len(nb.Neighbors) {
			continue
		}
		if containsLabel(na.Neighbors[level], p.b) {
			continue
		}
		if len(na.Neighbors[level]) >= mMax || len(nb.Neighbors[level]) >= mMax {
			continue
		}
		na.Neighbors[level] = append(na.Neighbors[level], p.b)
		nb.Neighbors[level] = append(nb.Neighbors[level], p.a)
		connected++
	}
	return nil
}

// Search returns the k nearest ids to query, unfiltered.
func (idx *Index) Search(ctx context.Context, tx kv.Transaction, query []float64, k int) ([]tuple.Tuple, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.HNSWSearchDuration, "false")

	g, err := idx.loadGraph(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !g.HasEntry {
		return nil, nil
	}
	cache := newVectorCache(ctx, tx, idx)

	entry, err := idx.greedyDescend(cache, g, query, g.TopLevel, 0)
	if err != nil {
		return nil, err
	}

	ef := idx.cfg.EfSearch
	if k > ef {
		ef = k
	}
	candidates, err := idx.searchLayer(cache, g, query, entry, 0, ef)
	if err != nil {
		return nil, err
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return idx.labelsToIDs(ctx, tx, candidates)
}

// SearchFiltered is the ACORN-style predicate-filtered search: traversal
// always follows neighbors (preserving connectivity through non-matching
// nodes), but only candidates predicate admits are kept in the result set.
// Traversal runs against an expanded budget of ef * Config.ExpansionFactor
// and stops evaluating predicate after Config.MaxPredicateEvaluations, if
// set.
func (idx *Index) SearchFiltered(ctx context.Context, tx kv.Transaction, query []float64, k int, predicate Predicate) ([]tuple.Tuple, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.HNSWSearchDuration, "true")

	g, err := idx.loadGraph(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !g.HasEntry {
		return nil, nil
	}
	cache := newVectorCache(ctx, tx, idx)

	entry, err := idx.greedyDescend(cache, g, query, g.TopLevel, 0)
	if err != nil {
		return nil, err
	}

	ef := idx.cfg.EfSearch
	if k > ef {
		ef = k
	}
	budget := int(math.Ceil(float64(ef) * idx.cfg.ExpansionFactor))
	if budget < ef {
		budget = ef
	}

	candidates, err := idx.searchLayerFiltered(ctx, tx, cache, g, query, entry, 0, ef, budget, predicate)
	if err != nil {
		return nil, err
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return idx.labelsToIDs(ctx, tx, candidates)
}

// greedyDescend hill-climbs from the graph's entry point down from level
// fromLevel to toLevel+1 inclusive, expanding only the single closest
// neighbor at each step (ef=1), returning the closest label found.
func (idx *Index) greedyDescend(cache *vectorCache, g *graphState, query []float64, fromLevel, toLevel int) (int64, error) {
	current := g.EntryLabel
	curVec, err := cache.get(current)
	if err != nil {
		return 0, err
	}
	curDist := vector.Distance(idx.metric, query, curVec)

	for level := fromLevel; level > toLevel; level-- {
		improved := true
		for improved {
			improved = false
			n := g.Nodes[current]
			if n == nil || level >= len(n.Neighbors) {
				break
			}
			for _, neighborLabel := range n.Neighbors[level] {
				nv, err := cache.get(neighborLabel)
				if err != nil {
					continue
				}
				d := vector.Distance(idx.metric, query, nv)
				if d < curDist {
					curDist = d
					current = neighborLabel
					improved = true
				}
			}
		}
	}
	return current, nil
}

// searchLayer runs bounded best-first search within one level, returning
// up to ef candidates in ascending-distance order.
func (idx *Index) searchLayer(cache *vectorCache, g *graphState, query []float64, entry int64, level, ef int) ([]scored, error) {
	visited := map[int64]bool{entry: true}
	entryVec, err := cache.get(entry)
	if err != nil {
		return nil, err
	}
	entryScored := scored{label: entry, dist: vector.Distance(idx.metric, query, entryVec)}

	candidates := &minHeap{entryScored}
	heap.Init(candidates)
	results := &maxHeap{entryScored}
	heap.Init(results)

	for candidates.Len() > 0 {
		c := (*candidates)[0]
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		heap.Pop(candidates)

		n := g.Nodes[c.label]
		if n == nil || level >= len(n.Neighbors) {
			continue
		}
		for _, neighborLabel := range n.Neighbors[level] {
			if visited[neighborLabel] {
				continue
			}
			visited[neighborLabel] = true
			nv, err := cache.get(neighborLabel)
			if err != nil {
				continue
			}
			d := vector.Distance(idx.metric, query, nv)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, scored{label: neighborLabel, dist: d})
				heap.Push(results, scored{label: neighborLabel, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	return drainAscending(results), nil
}

// searchLayerFiltered is searchLayer's ACORN variant: every traversed
// neighbor is enqueued into the candidate frontier regardless of whether it
// matches, but only predicate-admitted candidates enter the result heap.
func (idx *Index) searchLayerFiltered(ctx context.Context, tx kv.Transaction, cache *vectorCache, g *graphState, query []float64, entry int64, level, ef, budget int, predicate Predicate) ([]scored, error) {
	visited := map[int64]bool{entry: true}
	entryVec, err := cache.get(entry)
	if err != nil {
		return nil, err
	}
	candidates := &minHeap{{label: entry, dist: vector.Distance(idx.metric, query, entryVec)}}
	heap.Init(candidates)
	results := &maxHeap{}
	heap.Init(results)

	expansions := 0
	predicateEvals := 0
	for candidates.Len() > 0 && expansions < budget {
		c := heap.Pop(candidates).(scored)
		expansions++

		id, err := idx.labelToID(ctx, tx, c.label)
		if err == nil {
			admit := false
			if idx.cfg.MaxPredicateEvaluations == 0 || predicateEvals < idx.cfg.MaxPredicateEvaluations {
				predicateEvals++
				if ok, perr := predicate(id); perr == nil {
					admit = ok
				}
			}
			if admit {
				heap.Push(results, c)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}

		n := g.Nodes[c.label]
		if n == nil || level >= len(n.Neighbors) {
			continue
		}
		for _, neighborLabel := range n.Neighbors[level] {
			if visited[neighborLabel] {
				continue
			}
			visited[neighborLabel] = true
			nv, err := cache.get(neighborLabel)
			if err != nil {
				continue
			}
			d := vector.Distance(idx.metric, query, nv)
			heap.Push(candidates, scored{label: neighborLabel, dist: d})
		}
	}
	return drainAscending(results), nil
}

func drainAscending(h *maxHeap) []scored {
	out := make([]scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scored)
	}
	return out
}

func (idx *Index) labelsToIDs(ctx context.Context, tx kv.Transaction, candidates []scored) ([]tuple.Tuple, error) {
	out := make([]tuple.Tuple, 0, len(candidates))
	for _, c := range candidates {
		id, err := idx.labelToID(ctx, tx, c.label)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (idx *Index) labelToID(ctx context.Context, tx kv.Transaction, label int64) (tuple.Tuple, error) {
	key, err := idx.idKey(label)
	if err != nil {
		return nil, err
	}
	raw, err := tx.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("hnsw: missing id mapping for label %d", label)
	}
	return tuple.Decode(raw)
}

func (idx *Index) mMaxFor(level int) int {
	if level == 0 {
		return idx.cfg.MMax0
	}
	return idx.cfg.M
}

// sampleLevel draws a node's level from floor(-ln(U) / ln(M)), U in (0,1).
func sampleLevel(m int) int {
	u := rand.Float64()
	for u <= 0 {
		u = rand.Float64()
	}
	return int(math.Floor(-math.Log(u) / math.Log(float64(m))))
}

func labelsOf(s []scored) []int64 {
	out := make([]int64, len(s))
	for i, c := range s {
		out[i] = c.label
	}
	return out
}
