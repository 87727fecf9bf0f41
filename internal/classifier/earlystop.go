package classifier

import "math"

// EarlyStopping watches a loss that should decrease. An epoch counts as an
// improvement only when the loss drops below the best seen value by more than
// MinDelta. Training stops once Patience consecutive epochs fail to improve,
// and the parameters from the best epoch are kept.
type EarlyStopping struct {
	MinDelta float64
	Patience int

	bestLoss float64
	best     *SoftmaxModel
	wait     int
}

// NewEarlyStopping creates a stopper. Negative arguments are treated as zero.
func NewEarlyStopping(minDelta float64, patience int) *EarlyStopping {
	return &EarlyStopping{
		MinDelta: math.Abs(minDelta),
		Patience: max(patience, 0),
		bestLoss: math.Inf(1),
	}
}

// Observe records the loss after an epoch and snapshots model when it
// improved. It returns true when training should stop.
func (e *EarlyStopping) Observe(loss float64, model *SoftmaxModel) bool {
	if loss < e.bestLoss-e.MinDelta {
		e.bestLoss = loss
		e.best = cloneModel(model)
		e.wait = 0
		return false
	}
	e.wait++
	return e.wait >= e.Patience
}

// Best returns the snapshot from the best epoch, or nil if nothing was observed.
func (e *EarlyStopping) Best() *SoftmaxModel {
	return e.best
}

// BestLoss returns the best loss seen so far.
func (e *EarlyStopping) BestLoss() float64 {
	return e.bestLoss
}
