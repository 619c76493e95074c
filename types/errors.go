package types

import (
	"fmt"
)

// AssemblyError reports operators that are missing or do not conform to the declared block structure
type AssemblyError struct {
	Operator string
	Reason   string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly error in %s: %s", e.Operator, e.Reason)
}

func NewAssemblyError(operator, format string, args ...any) *AssemblyError {
	return &AssemblyError{Operator: operator, Reason: fmt.Sprintf(format, args...)}
}

// FactorizationError reports a singular or indefinite operator met by a direct sub-solve
type FactorizationError struct {
	Operator string
	Err      error
}

func (e *FactorizationError) Error() string {
	return fmt.Sprintf("factorization of %s failed: %v", e.Operator, e.Err)
}

func (e *FactorizationError) Unwrap() error { return e.Err }

// LinearNonConvergence is returned by the field split solver when the iteration limit is reached and
// errors on non-convergence were requested
type LinearNonConvergence struct {
	Iterations       int
	ResidualNorm     float64
	RelativeResidual float64
}

func (e *LinearNonConvergence) Error() string {
	return fmt.Sprintf("linear solver did not converge in %d iterations, residual %8.5e (relative %8.5e)",
		e.Iterations, e.ResidualNorm, e.RelativeResidual)
}

// NonlinearNonConvergence is returned when the outer iteration limit is reached and errors on
// non-convergence were requested
type NonlinearNonConvergence struct {
	Iterations   int
	ResidualNorm float64
	InitialNorm  float64
}

func (e *NonlinearNonConvergence) Error() string {
	return fmt.Sprintf("nonlinear solver did not converge in %d iterations, residual %8.5e (initial %8.5e)",
		e.Iterations, e.ResidualNorm, e.InitialNorm)
}

// SolveError carries the nonlinear iteration context of a fatal failure
type SolveError struct {
	Iteration    int
	ResidualNorm float64
	InitialNorm  float64
	Err          error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("nonlinear iteration %d (residual %8.5e, initial %8.5e): %v",
		e.Iteration, e.ResidualNorm, e.InitialNorm, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }
