package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Reranker is the opaque chat-completion call used by llm fusion. The
// provider package's clients satisfy it.
type Reranker interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// scoredResult carries a result through the weighting and fusion passes.
// Position is the index inside the engine's own result list, captured at
// fan-out merge time so position scoring never re-derives it by identity.
type scoredResult struct {
	Result   Result
	Engine   string
	Position int
	Score    float64
}

// positionScore decays with the result's rank in its source list. The index
// bases at zero, so the denominator is always at least one.
func positionScore(position int) float64 {
	return 1.0 / float64(position+1)
}

// sortScored orders by score descending with deterministic tie-breaking.
func sortScored(items []scoredResult) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Engine != items[j].Engine {
			return items[i].Engine < items[j].Engine
		}
		return items[i].Position < items[j].Position
	})
}

// simpleFusion interleaves results round-robin by engine, preserving each
// engine's internal order. Engines iterate in sorted-name order.
func simpleFusion(engineOrder []string, byEngine map[string][]scoredResult) []Result {
	queues := make([][]scoredResult, 0, len(engineOrder))
	for _, name := range engineOrder {
		if items := byEngine[name]; len(items) > 0 {
			queues = append(queues, items)
		}
	}
	var out []Result
	for len(queues) > 0 {
		next := queues[:0]
		for _, q := range queues {
			out = append(out, q[0].Result)
			if len(q) > 1 {
				next = append(next, q[1:])
			}
		}
		queues = next
	}
	return out
}

// weightedFusion keeps only the highest-scoring duplicate per normalized
// URL, then sorts descending by score. It is the deterministic fallback
// every other strategy degrades to.
func weightedFusion(items []scoredResult) []Result {
	best := make(map[string]scoredResult, len(items))
	var noURL []scoredResult
	for _, it := range items {
		key := NormalizeURL(it.Result.Link)
		if key == "" {
			noURL = append(noURL, it)
			continue
		}
		if cur, ok := best[key]; !ok || it.Score > cur.Score {
			best[key] = it
		}
	}
	merged := make([]scoredResult, 0, len(best)+len(noURL))
	for _, it := range best {
		merged = append(merged, it)
	}
	merged = append(merged, noURL...)
	sortScored(merged)

	out := make([]Result, len(merged))
	for i, it := range merged {
		out[i] = it.Result
	}
	return out
}

// llmFusion asks the reranker for an index permutation over a
// weight-proportional subset of the candidates. Any failure (transport,
// parse, invalid permutation) falls back to weighted fusion; the fallback
// is mandatory.
func llmFusion(ctx context.Context, llm Reranker, query string, items []scoredResult, weights map[string]float64, limit int) ([]Result, error) {
	if llm == nil {
		return nil, fmt.Errorf("no reranker available")
	}
	if limit <= 0 {
		limit = 30
	}
	subset, remainder := selectBalancedSubset(items, weights, limit)
	if len(subset) == 0 {
		return nil, fmt.Errorf("no candidates to rerank")
	}

	var b strings.Builder
	for i, it := range subset {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i, it.Engine, it.Result.Title, truncate(it.Result.Snippet, 200))
	}
	system := "You are a search result reranker. Given a query and a numbered list of results, return ONLY a JSON array of the result indices reordered from most to least relevant. No other text."
	user := fmt.Sprintf("Query: %s\n\nResults:\n%s", query, b.String())

	reply, err := llm.ChatCompletion(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("rerank call: %w", err)
	}
	order, err := parsePermutation(reply, len(subset))
	if err != nil {
		return nil, fmt.Errorf("rerank parse: %w", err)
	}

	out := make([]Result, 0, len(subset)+len(remainder))
	for _, idx := range order {
		out = append(out, subset[idx].Result)
	}
	for _, it := range remainder {
		out = append(out, it.Result)
	}
	return out, nil
}

// selectBalancedSubset picks up to limit items, allocating slots per engine in
// proportion to its weight so low-weight engines still surface. Both the
// subset and the remainder preserve overall weighted order.
func selectBalancedSubset(items []scoredResult, weights map[string]float64, limit int) (subset, remainder []scoredResult) {
	if len(items) <= limit {
		return items, nil
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	quota := make(map[string]int, len(weights))
	for engine, w := range weights {
		n := 1
		if total > 0 {
			n = int(float64(limit)*w/total + 0.5)
		}
		if n < 1 {
			n = 1
		}
		quota[engine] = n
	}

	taken := make([]bool, len(items))
	count := 0
	perEngine := make(map[string]int)
	for i, it := range items {
		if count >= limit {
			break
		}
		if perEngine[it.Engine] >= quota[it.Engine] {
			continue
		}
		taken[i] = true
		perEngine[it.Engine]++
		count++
	}
	// Fill any leftover capacity in overall order.
	for i := range items {
		if count >= limit {
			break
		}
		if !taken[i] {
			taken[i] = true
			count++
		}
	}
	for i, it := range items {
		if taken[i] {
			subset = append(subset, it)
		} else {
			remainder = append(remainder, it)
		}
	}
	return subset, remainder
}

// parsePermutation extracts a JSON integer array from the model's reply and
// validates it is a set of unique in-range indices. Missing indices are
// allowed; they are appended in original order by the caller's remainder
// handling only if absent from the subset, so here we append them ourselves.
func parsePermutation(reply string, n int) ([]int, error) {
	s := strings.TrimSpace(reply)
	if i := strings.IndexByte(s, '['); i >= 0 {
		if j := strings.LastIndexByte(s, ']'); j > i {
			s = s[i : j+1]
		}
	}
	var order []int
	if err := json.Unmarshal([]byte(s), &order); err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("index %d out of range", idx)
		}
		if _, dup := seen[idx]; dup {
			return nil, fmt.Errorf("duplicate index %d", idx)
		}
		seen[idx] = struct{}{}
	}
	// Untouched indices keep their relative order after the reranked ones.
	for i := 0; i < n; i++ {
		if _, ok := seen[i]; !ok {
			order = append(order, i)
		}
	}
	return order, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
