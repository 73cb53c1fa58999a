package regressor

import (
	"math"
	"math/rand"
	"sort"
)

// treeConfig bounds tree growth.
type treeConfig struct {
	maxDepth    int // <= 0 means unlimited
	minLeaf     int
	maxFeatures int // features tried per split; <= 0 means all
	rng         *rand.Rand
}

type treeNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	members   []int // row indices that reached the leaf
}

// regTree is a binary regression tree grown by squared-error reduction.
type regTree struct {
	nodes []treeNode
}

// growTree fits a tree to target over the rows in idx. idx may repeat rows
// (bootstrap samples); leaves record them as given.
func growTree(x [][]float64, target []float64, idx []int, cfg treeConfig) *regTree {
	if cfg.minLeaf < 1 {
		cfg.minLeaf = 1
	}
	t := &regTree{}
	t.split(x, target, append([]int(nil), idx...), 0, cfg)
	return t
}

func (t *regTree) split(x [][]float64, target []float64, idx []int, depth int, cfg treeConfig) int {
	pos := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{})

	feature, threshold, ok := bestSplit(x, target, idx, cfg)
	if !ok || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		sum := 0.0
		for _, i := range idx {
			sum += target[i]
		}
		t.nodes[pos] = treeNode{leaf: true, value: sum / float64(len(idx)), members: idx}
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.split(x, target, left, depth+1, cfg)
	r := t.split(x, target, right, depth+1, cfg)
	t.nodes[pos] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return pos
}

// bestSplit scans candidate features for the threshold with the largest
// squared-error reduction that leaves at least minLeaf rows on each side.
func bestSplit(x [][]float64, target []float64, idx []int, cfg treeConfig) (int, float64, bool) {
	n := len(idx)
	if n < 2*cfg.minLeaf {
		return 0, 0, false
	}
	features := candidateFeatures(len(x[idx[0]]), cfg)

	total := 0.0
	for _, i := range idx {
		total += target[i]
	}

	bestGain := 1e-12
	bestFeature, bestThreshold, found := 0, 0.0, false
	order := make([]int, n)
	for _, f := range features {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += target[order[k]]
			nl := k + 1
			nr := n - nl
			if nl < cfg.minLeaf || nr < cfg.minLeaf {
				continue
			}
			lo, hi := x[order[k]][f], x[order[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			// SSE reduction up to a constant: sum_l^2/n_l + sum_r^2/n_r - total^2/n.
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - total*total/float64(n)
			if gain > bestGain {
				bestGain, bestFeature, bestThreshold, found = gain, f, lo+(hi-lo)/2, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func candidateFeatures(width int, cfg treeConfig) []int {
	all := make([]int, width)
	for i := range all {
		all[i] = i
	}
	if cfg.maxFeatures <= 0 || cfg.maxFeatures >= width || cfg.rng == nil {
		return all
	}
	cfg.rng.Shuffle(width, func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:cfg.maxFeatures]
}

// leaf returns the leaf reached by row.
func (t *regTree) leaf(row []float64) *treeNode {
	n := &t.nodes[0]
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n
}

// leaves returns the indices of all leaf nodes.
func (t *regTree) leaves() []int {
	var out []int
	for i := range t.nodes {
		if t.nodes[i].leaf {
			out = append(out, i)
		}
	}
	return out
}

func maxFeatureCount(width int, fraction float64) int {
	if fraction <= 0 || fraction >= 1 {
		return width
	}
	return int(math.Max(1, math.Round(fraction*float64(width))))
}
