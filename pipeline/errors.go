package pipeline

import (
	"errors"
	"fmt"
)

// Step names one stage of a fetch-and-build run.
type Step string

const (
	// StepFetch obtains the source tree.
	StepFetch Step = "fetch"
	// StepEnter locates the directory the build runs in.
	StepEnter Step = "enter"
	// StepBuild runs make.
	StepBuild Step = "build"
)

// StepError is returned when a step fails. Later steps never run.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step `err` originates from.
func FailedStep(err error) (Step, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
