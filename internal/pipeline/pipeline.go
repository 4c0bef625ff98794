// Package pipeline implements the ordered, length-capped stage list edits.
// Every function returns a fresh slice and leaves its input untouched.
package pipeline

import (
	"github.com/pkg/errors"

	"hireline/internal/domain"
)

// Append adds s at the end. Pipelines already longer than maxLen (after the
// cap was lowered) are kept as they are but cannot grow.
func Append(stages []domain.Stage, s domain.Stage, maxLen int) ([]domain.Stage, error) {
	if len(stages) >= maxLen {
		return nil, errors.Wrapf(domain.ErrPipelineFull, "length %d, max %d", len(stages), maxLen)
	}
	out := clone(stages, 1)
	return append(out, s), nil
}

// Update replaces the stage at idx in place.
func Update(stages []domain.Stage, idx int, s domain.Stage) ([]domain.Stage, error) {
	if err := checkIndex(stages, idx); err != nil {
		return nil, err
	}
	out := clone(stages, 0)
	out[idx] = s
	return out, nil
}

// Delete removes the stage at idx and shifts the tail left by one.
func Delete(stages []domain.Stage, idx int) ([]domain.Stage, error) {
	if err := checkIndex(stages, idx); err != nil {
		return nil, err
	}
	out := make([]domain.Stage, 0, len(stages)-1)
	out = append(out, stages[:idx]...)
	return append(out, stages[idx+1:]...), nil
}

// Move takes the stage at from and reinserts it at to. Stages strictly
// between the two positions shift by one slot towards from.
func Move(stages []domain.Stage, from, to int) ([]domain.Stage, error) {
	if err := checkIndex(stages, from); err != nil {
		return nil, err
	}
	if err := checkIndex(stages, to); err != nil {
		return nil, err
	}
	out := clone(stages, 0)
	if from == to {
		return out, nil
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out, nil
}

func checkIndex(stages []domain.Stage, idx int) error {
	if idx < 0 || idx >= len(stages) {
		return errors.Wrapf(domain.ErrIndexOutOfRange, "index %d, length %d", idx, len(stages))
	}
	return nil
}

func clone(stages []domain.Stage, extra int) []domain.Stage {
	out := make([]domain.Stage, len(stages), len(stages)+extra)
	copy(out, stages)
	return out
}
