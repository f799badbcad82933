package classify

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/artmap/internal/textvec"
)

// Default forest parameters.
const (
	DefaultTrees = 200
	DefaultSeed  = 42
)

// Forest is a random forest of fully grown Gini decision trees voting by majority.
type Forest struct {
	Classes []string `json:"classes"`
	Trees   []*Tree  `json:"trees"`
	NTrees  int      `json:"n_trees"`
	Seed    uint64   `json:"seed"`
}

// ForestOption configures a Forest.
type ForestOption func(*Forest)

// WithTrees sets the number of trees.
func WithTrees(n int) ForestOption {
	return func(f *Forest) {
		if n > 0 {
			f.NTrees = n
		}
	}
}

// WithSeed sets the seed that drives bootstrap sampling and feature selection.
func WithSeed(seed uint64) ForestOption {
	return func(f *Forest) {
		f.Seed = seed
	}
}

// NewForest creates an untrained forest.
func NewForest(opts ...ForestOption) *Forest {
	f := &Forest{NTrees: DefaultTrees, Seed: DefaultSeed}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows the trees. Results depend only on the seed and the sample order.
func (f *Forest) Fit(samples []textvec.Vector, labels []string) error {
	if err := validateTrainingSet(len(samples), labels); err != nil {
		return err
	}

	classes, y := encodeLabels(labels)
	mtry := max(1, int(math.Sqrt(float64(featureCount(samples)))))

	// Seeds are drawn up front so parallel growth stays reproducible.
	master := rand.New(rand.NewPCG(f.Seed, f.Seed))
	seeds := make([]uint64, f.NTrees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*Tree, f.NTrees)
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			b := &treeBuilder{
				samples: samples,
				y:       y,
				classes: len(classes),
				mtry:    mtry,
				rng:     rng,
			}
			trees[i] = b.build(bootstrap(len(samples), rng))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Classes = classes
	f.Trees = trees
	return nil
}

// Predict returns the majority vote of the trees. Ties go to the
// lexicographically smallest label.
func (f *Forest) Predict(sample textvec.Vector) (Result, error) {
	if len(f.Trees) == 0 {
		return Result{}, ErrNotTrained
	}
	if sample.Empty() {
		return Result{}, ErrNoSignal
	}

	votes := make([]int, len(f.Classes))
	for _, t := range f.Trees {
		votes[t.predict(sample)]++
	}
	best := argmax(votes)
	return Result{
		Label:      f.Classes[best],
		Confidence: float64(votes[best]) / float64(len(f.Trees)),
	}, nil
}

func featureCount(samples []textvec.Vector) int {
	highest := -1
	for _, s := range samples {
		if n := len(s.Indices); n > 0 && s.Indices[n-1] > highest {
			highest = s.Indices[n-1]
		}
	}
	return highest + 1
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// Node is one node of a flattened decision tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Class     int     `json:"c,omitempty"`
}

// Tree is a decision tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(sample textvec.Vector) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Class
		}
		if sample.At(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	rng     *rand.Rand
	samples []textvec.Vector
	y       []int
	nodes   []Node
	classes int
	mtry    int
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

func (b *treeBuilder) build(rows []int) *Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows)
	return &Tree{Nodes: append([]Node(nil), b.nodes...)}
}

// grow appends the subtree for rows and returns its root index.
func (b *treeBuilder) grow(rows []int) int {
	counts := b.classCounts(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Class: argmax(counts)})

	if pure(counts) {
		return idx
	}

	best, ok := b.bestSplit(rows, gini(counts, len(rows)))
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.samples[r].At(best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left)
	r := b.grow(right)
	b.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return idx
}

// bestSplit evaluates up to mtry randomly ordered features that are non-zero
// somewhere in rows. Features that cannot separate the rows do not count
// toward mtry.
func (b *treeBuilder) bestSplit(rows []int, parent float64) (split, bool) {
	candidates := b.activeFeatures(rows)
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	best := split{impurity: parent}
	found := false
	evaluated := 0
	for _, f := range candidates {
		if evaluated >= b.mtry && found {
			break
		}
		s, ok := b.splitOn(rows, f)
		if !ok {
			continue
		}
		evaluated++
		if s.impurity < best.impurity {
			best = s
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) activeFeatures(rows []int) []int {
	seen := make(map[int]struct{})
	for _, r := range rows {
		for _, f := range b.samples[r].Indices {
			seen[f] = struct{}{}
		}
	}
	features := make([]int, 0, len(seen))
	for f := range seen {
		features = append(features, f)
	}
	sort.Ints(features)
	return features
}

type valued struct {
	value float64
	class int
}

// splitOn finds the threshold on feature f with the lowest weighted Gini impurity.
func (b *treeBuilder) splitOn(rows []int, f int) (split, bool) {
	vals := make([]valued, len(rows))
	for i, r := range rows {
		vals[i] = valued{value: b.samples[r].At(f), class: b.y[r]}
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].value < vals[j].value })
	if vals[0].value == vals[len(vals)-1].value {
		return split{}, false
	}

	left := make([]int, b.classes)
	right := make([]int, b.classes)
	for _, v := range vals {
		right[v.class]++
	}

	n := len(vals)
	best := split{feature: f, impurity: math.Inf(1)}
	for i := 0; i < n-1; i++ {
		left[vals[i].class]++
		right[vals[i].class]--
		if vals[i].value == vals[i+1].value {
			continue
		}
		nl, nr := i+1, n-i-1
		imp := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		if imp < best.impurity {
			best.impurity = imp
			best.threshold = (vals[i].value + vals[i+1].value) / 2
		}
	}
	return best, true
}

func (b *treeBuilder) classCounts(rows []int) []int {
	counts := make([]int, b.classes)
	for _, r := range rows {
		counts[b.y[r]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
