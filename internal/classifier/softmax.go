package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/spectra.report/internal/monitoring"
)

// MonitorLoss is the only early-stopping metric the softmax classifier reports.
const MonitorLoss = "loss"

// Softmax is a multinomial logistic regression trained with mini-batch
// gradient descent. It is the default Classifier for the controller.
type Softmax struct {
	LearningRate float64
	L2           float64  // weight decay applied every step
	Seed         uint64   // seeds mini-batch shuffling
	Balancer     Balancer // optional; applied to the training set before fitting
}

// NewSoftmax returns a Softmax classifier with SMOTE rebalancing.
func NewSoftmax(seed uint64) *Softmax {
	return &Softmax{
		LearningRate: 0.1,
		L2:           1e-4,
		Seed:         seed,
		Balancer:     &SMOTE{K: 5, Seed: seed},
	}
}

// SoftmaxModel holds the fitted weights: a points x classes matrix and one
// bias per class.
type SoftmaxModel struct {
	Weights *mat.Dense
	Bias    []float64
	Epochs  int     // epochs actually run
	Loss    float64 // best monitored loss
}

// Classes implements Model.
func (m *SoftmaxModel) Classes() int {
	return len(m.Bias)
}

type softmaxModelJSON struct {
	Weights []byte    `json:"weights"`
	Bias    []float64 `json:"bias"`
	Epochs  int       `json:"epochs"`
	Loss    float64   `json:"loss"`
}

// MarshalBinary implements Model.
func (m *SoftmaxModel) MarshalBinary() ([]byte, error) {
	w, err := m.Weights.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}
	return json.Marshal(softmaxModelJSON{Weights: w, Bias: m.Bias, Epochs: m.Epochs, Loss: m.Loss})
}

// UnmarshalSoftmaxModel decodes a model produced by MarshalBinary.
func UnmarshalSoftmaxModel(data []byte) (*SoftmaxModel, error) {
	var raw softmaxModelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	var w mat.Dense
	if err := w.UnmarshalBinary(raw.Weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if _, c := w.Dims(); c != len(raw.Bias) {
		return nil, fmt.Errorf("weights have %d classes, bias has %d", c, len(raw.Bias))
	}
	return &SoftmaxModel{Weights: &w, Bias: raw.Bias, Epochs: raw.Epochs, Loss: raw.Loss}, nil
}

// Train implements Classifier.
func (s *Softmax) Train(fluxes [][]float64, labels []int, points, classes int, hp Hyperparameters) (Model, error) {
	if err := checkInputs(fluxes, points); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if len(labels) != len(fluxes) {
		return nil, fmt.Errorf("train: %d spectra but %d labels", len(fluxes), len(labels))
	}
	if classes < 1 {
		return nil, fmt.Errorf("train: need at least one class, got %d", classes)
	}
	for i, y := range labels {
		if y < 0 || y >= classes {
			return nil, fmt.Errorf("train: label %d of spectrum %d outside [0, %d)", y, i, classes)
		}
	}
	if hp.Monitor != "" && hp.Monitor != MonitorLoss {
		return nil, fmt.Errorf("train: unsupported monitor %q", hp.Monitor)
	}
	if hp.Epochs < 1 {
		return nil, fmt.Errorf("train: epochs must be positive, got %d", hp.Epochs)
	}

	if s.Balancer != nil {
		var err error
		fluxes, labels, err = s.Balancer.Balance(fluxes, labels)
		if err != nil {
			return nil, fmt.Errorf("train: balance: %w", err)
		}
	}

	n := len(fluxes)
	x := rowsToDense(fluxes, points)
	y := oneHot(labels, classes)

	model := &SoftmaxModel{
		Weights: mat.NewDense(points, classes, nil),
		Bias:    make([]float64, classes),
	}
	stopper := NewEarlyStopping(hp.MinDelta, hp.Patience)

	batch := hp.BatchSize
	if batch <= 0 || batch > n {
		batch = n
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	epoch := 0
	for epoch < hp.Epochs {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < n; start += batch {
			end := start + batch
			if end > n {
				end = n
			}
			s.step(model, x, y, order[start:end])
		}
		epoch++

		loss := crossEntropy(model, x, labels)
		if stopper.Observe(loss, model) {
			break
		}
	}

	best := stopper.Best()
	if best == nil {
		best = cloneModel(model)
	}
	best.Epochs = epoch
	best.Loss = stopper.BestLoss()
	monitoring.Logf("softmax: trained on %d spectra (%d classes) for %d epochs, best loss %.6f",
		n, classes, epoch, best.Loss)
	return best, nil
}

// step applies one gradient-descent update for the rows in idx.
func (s *Softmax) step(model *SoftmaxModel, x, y *mat.Dense, idx []int) {
	_, points := x.Dims()
	_, classes := y.Dims()
	m := len(idx)

	xb := mat.NewDense(m, points, nil)
	diff := mat.NewDense(m, classes, nil)
	for i, r := range idx {
		xb.SetRow(i, x.RawRowView(r))
	}

	var z mat.Dense
	z.Mul(xb, model.Weights)
	softmaxRows(&z, model.Bias)
	for i, r := range idx {
		floats.SubTo(diff.RawRowView(i), z.RawRowView(i), y.RawRowView(r))
	}

	var grad mat.Dense
	grad.Mul(xb.T(), diff)

	if s.L2 > 0 {
		model.Weights.Scale(1-s.LearningRate*s.L2, model.Weights)
	}
	grad.Scale(-s.LearningRate/float64(m), &grad)
	model.Weights.Add(model.Weights, &grad)

	for i := 0; i < m; i++ {
		floats.AddScaled(model.Bias, -s.LearningRate/float64(m), diff.RawRowView(i))
	}
}

// Predict implements Classifier.
func (s *Softmax) Predict(model Model, fluxes [][]float64, points int, hp Hyperparameters) (*mat.Dense, error) {
	sm, ok := model.(*SoftmaxModel)
	if !ok {
		return nil, fmt.Errorf("predict: unsupported model type %T", model)
	}
	if err := checkInputs(fluxes, points); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if r, _ := sm.Weights.Dims(); r != points {
		return nil, fmt.Errorf("predict: model expects %d points, got %d", r, points)
	}

	out := mat.NewDense(len(fluxes), sm.Classes(), nil)
	for _, c := range chunks(len(fluxes), hp.PredictBatchSize) {
		probs := forward(sm, rowsToDense(fluxes[c[0]:c[1]], points))
		for i := c[0]; i < c[1]; i++ {
			out.SetRow(i, probs.RawRowView(i-c[0]))
		}
	}
	return out, nil
}

func forward(model *SoftmaxModel, x *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(x, model.Weights)
	softmaxRows(&z, model.Bias)
	return &z
}

// softmaxRows adds bias to every row of z and replaces it with its softmax.
func softmaxRows(z *mat.Dense, bias []float64) {
	rows, _ := z.Dims()
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		floats.Add(row, bias)
		peak := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - peak)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

func crossEntropy(model *SoftmaxModel, x *mat.Dense, labels []int) float64 {
	const eps = 1e-12
	probs := forward(model, x)
	var loss float64
	for i, y := range labels {
		loss -= math.Log(probs.At(i, y) + eps)
	}
	return loss / float64(len(labels))
}

func rowsToDense(rows [][]float64, points int) *mat.Dense {
	d := mat.NewDense(len(rows), points, nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d
}

func oneHot(labels []int, classes int) *mat.Dense {
	y := mat.NewDense(len(labels), classes, nil)
	for i, l := range labels {
		y.Set(i, l, 1)
	}
	return y
}

func cloneModel(m *SoftmaxModel) *SoftmaxModel {
	return &SoftmaxModel{
		Weights: mat.DenseCopyOf(m.Weights),
		Bias:    append([]float64(nil), m.Bias...),
	}
}
