package lsrna

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type TSNEParams struct {
	Perplexity   float64 `yaml:"perplexity"`
	Seed         uint64  `yaml:"seed"`
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	InitialDims  int     `yaml:"initial_dims"`
}

func DefaultTSNEParams() TSNEParams {
	return TSNEParams{
		Perplexity:   3,
		Seed:         42,
		Iterations:   1000,
		LearningRate: 200,
		InitialDims:  50,
	}
}

const (
	tsneExaggeration = 12.0
	tsneStopLying    = 250
	tsneMomentumIter = 250
	tsneMinGain      = 0.01
	tsneEntropyTol   = 1e-5
	tsneSearchSteps  = 200
)

type TSNEResult struct {
	Samples   []string
	Embedding *mat.Dense
	KL        float64
}

func sqDists(x *mat.Dense) [][]float64 {
	n, _ := x.Dims()
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
			d[i][j] = v * v
			d[j][i] = v * v
		}
	}
	return d
}

// conditionalRow fills p with p_{j|i} at the precision that matches the
// target entropy log(perplexity).
func conditionalRow(p, d []float64, i int, perplexity float64) {
	target := math.Log(perplexity)
	beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
	for step := 0; step < tsneSearchSteps; step++ {
		var sum, dsum float64
		for j := range p {
			if j == i {
				p[j] = 0
				continue
			}
			p[j] = math.Exp(-d[j] * beta)
			sum += p[j]
		}
		if sum == 0 {
			sum = math.SmallestNonzeroFloat64
		}
		for j := range p {
			dsum += d[j] * p[j]
		}
		h := math.Log(sum) + beta*dsum/sum
		for j := range p {
			p[j] /= sum
		}
		diff := h - target
		if math.Abs(diff) < tsneEntropyTol {
			return
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}
}

// JointProbabilities returns the symmetrised input affinities.
func JointProbabilities(x *mat.Dense, perplexity float64) [][]float64 {
	n, _ := x.Dims()
	d := sqDists(x)
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
		conditionalRow(p[i], d[i], i, perplexity)
	}
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := p[i][j] + p[j][i]
			p[i][j], p[j][i] = v, v
			sum += 2 * v
		}
	}
	for i := range p {
		for j := range p[i] {
			if i != j {
				p[i][j] = math.Max(p[i][j]/sum, 1e-12)
			}
		}
	}
	return p
}

func prepareTSNEInput(x *mat.Dense, dims int) (*mat.Dense, error) {
	n, d := x.Dims()
	var in *mat.Dense
	if dims > 0 && d > dims {
		pca, e := PCAOf(x, nil)
		if e != nil {
			return nil, e
		}
		_, k := pca.Scores.Dims()
		in = mat.DenseCopyOf(pca.Scores.Slice(0, n, 0, min(dims, k)))
	} else {
		in = mat.DenseCopyOf(x)
	}
	_, d = in.Dims()
	col := make([]float64, n)
	var maxAbs float64
	for j := 0; j < d; j++ {
		mat.Col(col, j, in)
		floats.AddConst(-floats.Sum(col)/float64(n), col)
		in.SetCol(j, col)
		maxAbs = math.Max(maxAbs, math.Max(floats.Max(col), -floats.Min(col)))
	}
	if maxAbs > 0 {
		in.Scale(1/maxAbs, in)
	}
	return in, nil
}

// TSNE embeds the rows of x in two dimensions with exact t-SNE. The result
// depends only on x and p.
func TSNE(x *mat.Dense, samples []string, p TSNEParams) (TSNEResult, error) {
	n, _ := x.Dims()
	if p.Perplexity <= 0 || float64(n-1) < 3*p.Perplexity {
		return TSNEResult{}, fmt.Errorf("TSNE: perplexity %v too large for %v samples; %w", p.Perplexity, n, ErrInsufficientData)
	}
	in, e := prepareTSNEInput(x, p.InitialDims)
	if e != nil {
		return TSNEResult{}, fmt.Errorf("TSNE: %w", e)
	}
	P := JointProbabilities(in, p.Perplexity)

	const dims = 2
	norm := distuv.Normal{Mu: 0, Sigma: 1e-4, Src: rand.NewSource(p.Seed)}
	y := make([][]float64, n)
	upd := make([][]float64, n)
	gains := make([][]float64, n)
	grad := make([][]float64, n)
	for i := range y {
		y[i] = []float64{norm.Rand(), norm.Rand()}
		upd[i] = make([]float64, dims)
		gains[i] = []float64{1, 1}
		grad[i] = make([]float64, dims)
	}

	num := make([][]float64, n)
	for i := range num {
		num[i] = make([]float64, n)
	}
	var kl float64
	for it := 0; it < p.Iterations; it++ {
		exag := 1.0
		if it < tsneStopLying {
			exag = tsneExaggeration
		}
		momentum := 0.8
		if it < tsneMomentumIter {
			momentum = 0.5
		}

		var sumQ float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := y[i][0]-y[j][0], y[i][1]-y[j][1]
				v := 1 / (1 + dx*dx + dy*dy)
				num[i][j], num[j][i] = v, v
				sumQ += 2 * v
			}
		}

		kl = 0
		for i := 0; i < n; i++ {
			grad[i][0], grad[i][1] = 0, 0
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := math.Max(num[i][j]/sumQ, 1e-12)
				mult := (exag*P[i][j] - q) * num[i][j]
				grad[i][0] += 4 * mult * (y[i][0] - y[j][0])
				grad[i][1] += 4 * mult * (y[i][1] - y[j][1])
				if P[i][j] > 0 {
					kl += P[i][j] * math.Log(P[i][j]/q)
				}
			}
		}

		for i := 0; i < n; i++ {
			for k := 0; k < dims; k++ {
				if (grad[i][k] > 0) != (upd[i][k] > 0) {
					gains[i][k] += 0.2
				} else {
					gains[i][k] *= 0.8
				}
				gains[i][k] = math.Max(gains[i][k], tsneMinGain)
				upd[i][k] = momentum*upd[i][k] - p.LearningRate*gains[i][k]*grad[i][k]
				y[i][k] += upd[i][k]
			}
		}
		for k := 0; k < dims; k++ {
			var mean float64
			for i := range y {
				mean += y[i][k]
			}
			mean /= float64(n)
			for i := range y {
				y[i][k] -= mean
			}
		}
	}

	emb := mat.NewDense(n, dims, nil)
	for i := range y {
		emb.SetRow(i, y[i])
	}
	return TSNEResult{Samples: samples, Embedding: emb, KL: kl}, nil
}
