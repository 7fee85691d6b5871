package dataset

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	DefaultSeed          = 42
	DefaultTrainFraction = 0.8
	DefaultValidFraction = 0.1
)

// Names of the splits, in the order that they are written
const (
	SplitTrain = "train"
	SplitValid = "valid"
	SplitTest  = "test"
)

var SplitNames = []string{SplitTrain, SplitValid, SplitTest}

// NewRNG creates the single random number generator that drives a build.
// The same seed always produces the same sequence.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// Remove duplicate samples (by image path), preserving the order of first appearance
func dedupe(samples []Sample) []Sample {
	seen := make(map[string]bool, len(samples))
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !seen[s.Image] {
			seen[s.Image] = true
			out = append(out, s)
		}
	}
	return out
}

// Draw a uniformly random subset of size n, using a partial Fisher-Yates shuffle over a copy of src
func sample(src []Sample, n int, rng *rand.Rand) []Sample {
	pool := slices.Clone(src)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n]
}

// Balance draws min(len(a), len(b)) samples from each of a and b.
// For a fixed rng seed, and a fixed input order, the result is always the same.
// Neither input is modified. If either input is empty, the result is ErrConfig.
func Balance(a, b []Sample, rng *rand.Rand) ([]Sample, []Sample, error) {
	a = dedupe(a)
	b = dedupe(b)
	if len(a) == 0 || len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: cannot balance an empty corpus (%v and %v samples)", ErrConfig, len(a), len(b))
	}
	n := min(len(a), len(b))
	subA := sample(a, n, rng)
	subB := sample(b, n, rng)
	return subA, subB, nil
}

// Splits is a partition of a corpus into train, validation and test sets
type Splits struct {
	Train []Sample
	Valid []Sample
	Test  []Sample
}

// Part is one named split
type Part struct {
	Name    string
	Samples []Sample
}

// Parts returns the splits in the order train, valid, test
func (s *Splits) Parts() []Part {
	return []Part{
		{SplitTrain, s.Train},
		{SplitValid, s.Valid},
		{SplitTest, s.Test},
	}
}

func (s *Splits) Len() int {
	return len(s.Train) + len(s.Valid) + len(s.Test)
}

// Split shuffles a copy of samples with rng, and partitions it by index:
//
//	train = [0, floor(trainFrac*N))
//	valid = [floor(trainFrac*N), floor(trainFrac*N) + floor(validFrac*N))
//	test  = the remainder
//
// Both sizes are truncated, not rounded, so test absorbs whatever the flooring leaves over.
func Split(samples []Sample, rng *rand.Rand, trainFrac, validFrac float64) (Splits, error) {
	if trainFrac < 0 || validFrac < 0 || trainFrac > 1 || validFrac > 1 || trainFrac+validFrac > 1 {
		return Splits{}, fmt.Errorf("%w: invalid split fractions train=%v valid=%v", ErrConfig, trainFrac, validFrac)
	}
	if len(samples) == 0 {
		return Splits{}, fmt.Errorf("%w: cannot split an empty corpus", ErrConfig)
	}
	all := slices.Clone(samples)
	rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})

	n := len(all)
	nTrain := int(trainFrac * float64(n))
	nValid := int(validFrac * float64(n))
	return Splits{
		Train: all[:nTrain:nTrain],
		Valid: all[nTrain : nTrain+nValid : nTrain+nValid],
		Test:  all[nTrain+nValid:],
	}, nil
}
