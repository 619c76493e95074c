package krylov

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/notargets/gopcd/fem"
	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/pcd"
	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// convectionDiffusion1D is a diagonally dominant nonsymmetric tridiagonal matrix
func convectionDiffusion1D(n int, c float64) utils.CSR {
	dok := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		dok.AddTo(i, i, 3+c)
		if i > 0 {
			dok.AddTo(i, i-1, -1-c)
		}
		if i < n-1 {
			dok.AddTo(i, i+1, -1)
		}
	}
	return dok.ToCSR()
}

func randomVector(rng *rand.Rand, n int) (v []float64) {
	v = make([]float64, n)
	for i := range v {
		v[i] = rng.Float64() - 0.5
	}
	return
}

func trueResidual(A Operator, b, x []float64) float64 {
	r := make([]float64, len(b))
	A(r, x)
	utils.Sub(r, b, r)
	return utils.Norm2(r)
}

func TestGMRES(t *testing.T) {
	var (
		rng = rand.New(rand.NewSource(11))
		n   = 50
		A   = convectionDiffusion1D(n, 1)
		b   = randomVector(rng, n)
	)
	{ // Test restarted GMRES reaches the requested true residual
		g := GMRES{Restart: 5, RelativeTolerance: 1.e-8, MaxIterations: 500}
		x := make([]float64, n)
		res, err := g.Solve(A.MulVecTo, nil, b, x)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.LessOrEqual(t, trueResidual(A.MulVecTo, b, x), 1.e-8*utils.Norm2(b))
		assert.InDelta(t, res.ResidualNorm, trueResidual(A.MulVecTo, b, x), 1.e-12)
		assert.Equal(t, res.Iterations+1, len(res.History))
		assert.Equal(t, utils.Norm2(b), res.History[0])
	}
	{ // Test classical and flexible GMRES agree for a fixed preconditioner
		sm, err := utils.NewSmoother(A)
		require.NoError(t, err)
		jacobi := func(z, r []float64) error { sm.Jacobi(z, r); return nil }
		var (
			xc, xf = make([]float64, n), make([]float64, n)
		)
		rc, err := GMRES{Restart: 20, RelativeTolerance: 1.e-10, MaxIterations: 200}.Solve(A.MulVecTo, jacobi, b, xc)
		require.NoError(t, err)
		rf, err := GMRES{Restart: 20, Flexible: true, RelativeTolerance: 1.e-10, MaxIterations: 200}.Solve(A.MulVecTo, jacobi, b, xf)
		require.NoError(t, err)
		assert.True(t, rc.Converged)
		assert.True(t, rf.Converged)
		assert.Equal(t, rc.Iterations, rf.Iterations)
		assert.InDeltaSlice(t, xc, xf, 1.e-8)
	}
	{ // Test the iteration ceiling is reported in the result
		x := make([]float64, n)
		res, err := GMRES{Restart: 3, RelativeTolerance: 1.e-14, MaxIterations: 4}.Solve(A.MulVecTo, nil, b, x)
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.Equal(t, 4, res.Iterations)
		assert.Less(t, res.RelativeResidual, 1.)
		assert.Greater(t, res.RelativeResidual, 0.)
	}
	{ // Test a zero right hand side converges immediately
		x := make([]float64, n)
		res, err := GMRES{Restart: 3, RelativeTolerance: 1.e-8}.Solve(A.MulVecTo, nil, make([]float64, n), x)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.Equal(t, 0, res.Iterations)
	}
	{ // Test preconditioner failures abort the solve
		boom := errors.New("boom")
		x := make([]float64, n)
		_, err := GMRES{Restart: 3, RelativeTolerance: 1.e-8}.Solve(A.MulVecTo,
			func(z, r []float64) error { return boom }, b, x)
		assert.ErrorIs(t, err, boom)
	}
	{ // Test a singular preconditioner ends the cycle without blowing up the iterate
		var (
			I    = utils.NewIdentity(4)
			ones = []float64{1, 1, 1, 1}
			x    = make([]float64, 4)
		)
		dropFirst := func(z, r []float64) error { copy(z, r); z[0] = 0; return nil }
		res, err := GMRES{Restart: 4, RelativeTolerance: 1.e-10, MaxIterations: 20}.Solve(I.MulVecTo, dropFirst, ones, x)
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.True(t, res.Breakdown)
		assert.False(t, utils.IsNan(x))
		assert.LessOrEqual(t, res.ResidualNorm, utils.Norm2(ones))
		assert.InDelta(t, 1., res.ResidualNorm, 1.e-12)
		assert.InDelta(t, res.ResidualNorm, trueResidual(I.MulVecTo, ones, x), 1.e-12)
		assert.Equal(t, res.Iterations+1, len(res.History))
	}
	{ // Test a cycle that increases the residual is rolled back
		var (
			I    = utils.NewIdentity(4)
			ones = []float64{1, 1, 1, 1}
			x    = make([]float64, 4)
			sign = -1.
		)
		flipping := func(z, r []float64) error {
			sign = -sign
			copy(z, r)
			floats.Scale(sign, z)
			return nil
		}
		res, err := GMRES{Restart: 4, RelativeTolerance: 1.e-10, MaxIterations: 20}.Solve(I.MulVecTo, flipping, ones, x)
		require.NoError(t, err)
		assert.True(t, res.Stagnated)
		assert.False(t, res.Converged)
		assert.Equal(t, utils.Norm2(ones), res.ResidualNorm)
		assert.Equal(t, []float64{0, 0, 0, 0}, x)
	}
	{ // Test the Givens rotation annihilates the second component
		for _, ab := range [][2]float64{{3, 4}, {4, 3}, {0, 2}, {-1, 0.5}} {
			g := drotg(ab[0], ab[1])
			rx, ry := rotvec(ab[0], ab[1], g)
			assert.InDelta(t, 0., ry, 1.e-15)
			assert.InDelta(t, math.Hypot(ab[0], ab[1]), math.Abs(rx), 1.e-15)
		}
	}
}

func identitySystem(nu, np int) (types.BlockSystem, types.PCDOperators) {
	sys := types.BlockSystem{
		Auu: utils.NewIdentity(nu),
		Aup: utils.NewCSR(nu, np),
		Apu: utils.NewCSR(np, nu),
		App: utils.NewIdentity(np),
	}
	ops := types.PCDOperators{
		Ap: utils.NewIdentity(np), Mp: utils.NewIdentity(np), Fp: utils.NewIdentity(np), Kp: utils.NewCSR(np, np),
		Nu: 1, Variant: types.BRM1,
	}
	return sys, ops
}

func channelOperators(t *testing.T, nu float64) (*pcd.LinearOperatorSet, []float64) {
	tm := geometry2D.NewRectangleMesh(0, 2, 0, 1, 4, 2)
	tm.MarkBoundary(func(x, y float64) int {
		switch {
		case math.Abs(x) < 1.e-12:
			return geometry2D.MarkerInflow
		case math.Abs(x-2) < 1.e-12:
			return geometry2D.MarkerOutflow
		}
		return geometry2D.MarkerWall
	})
	asm, err := fem.NewAssembler(&fem.Problem{
		Mesh:  tm,
		Nu:    nu,
		Alpha: 1,
		VelocityBCs: map[int]fem.VectorField{
			geometry2D.MarkerWall:   func(x, y float64) (float64, float64) { return 0, 0 },
			geometry2D.MarkerInflow: func(x, y float64) (float64, float64) { return 4 * y * (1 - y), 0 },
		},
		InflowMarker:  geometry2D.MarkerInflow,
		OutflowMarker: geometry2D.MarkerOutflow,
	})
	require.NoError(t, err)
	ops, err := pcd.NewLinearOperatorSet(asm)
	require.NoError(t, err)
	w := asm.Interpolate(func(x, y float64) (float64, float64, float64) {
		return 4 * y * (1 - y), 0, 8 * nu * (2 - x)
	})
	return ops, w
}

func TestFieldSplitSolver(t *testing.T) {
	var (
		rng = rand.New(rand.NewSource(5))
	)
	{ // Test the identity block system converges in one iteration
		sys, ops := identitySystem(8, 3)
		pc, err := pcd.NewPCDPreconditioner(ops, pcd.DefaultSubSolverConfig())
		require.NoError(t, err)
		fs, err := NewFieldSplitSolver(DefaultFieldSplitConfig())
		require.NoError(t, err)
		require.NoError(t, fs.SetOperators(sys, pc))
		assert.Equal(t, "GMRES", fs.Method())
		var (
			b = randomVector(rng, 11)
			x = make([]float64, 11)
		)
		res, err := fs.Solve(b, x)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.Equal(t, 1, res.Iterations)
		assert.InDeltaSlice(t, b, x, 1.e-14)
		// Unchanged Auu keeps the velocity factorization
		require.NoError(t, fs.SetOperators(sys, pc))
		assert.Equal(t, 1, fs.VelocityFactorizations)
	}
	{ // Test an unbound solver refuses to run
		fs, err := NewFieldSplitSolver(DefaultFieldSplitConfig())
		require.NoError(t, err)
		_, err = fs.Solve(make([]float64, 3), make([]float64, 3))
		assert.Error(t, err)
		sys, _ := identitySystem(2, 1)
		assert.Error(t, fs.ReuseVelocitySolver(sys, nil))
	}
	{ // Test invalid configurations
		cfg := DefaultFieldSplitConfig()
		cfg.MaxIterations = 0
		_, err := NewFieldSplitSolver(cfg)
		assert.Error(t, err)
	}
	nu := 0.1
	ops, w := channelOperators(t, nu)
	sys, pcdOps, err := ops.Build(w, nu, types.BRM2, types.Newton)
	require.NoError(t, err)
	n := ops.Structure().Size()
	b := randomVector(rng, n)
	{ // Test direct sub-solves on a Newton system
		pc, err := pcd.NewPCDPreconditioner(pcdOps, pcd.DefaultSubSolverConfig())
		require.NoError(t, err)
		cfg := DefaultFieldSplitConfig()
		cfg.MaxIterations = 200
		fs, err := NewFieldSplitSolver(cfg)
		require.NoError(t, err)
		require.NoError(t, fs.SetOperators(sys, pc))
		assert.Equal(t, "GMRES", fs.Method())
		x := make([]float64, n)
		res, err := fs.Solve(b, x)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.Less(t, res.Iterations, n)
		assert.LessOrEqual(t, trueResidual(sys.MulVec, b, x), 1.e-6*utils.Norm2(b)*(1+1.e-8))
		assert.Greater(t, pc.Applications(), res.Iterations-1)
	}
	{ // Test direct sub-solves converge on both PCD variants
		for _, variant := range []types.PCDVariant{types.BRM1, types.BRM2} {
			for _, mode := range []types.NonlinearType{types.Picard, types.Newton} {
				sys, pcdOps, err := ops.Build(w, nu, variant, mode)
				require.NoError(t, err)
				pc, err := pcd.NewPCDPreconditioner(pcdOps, pcd.DefaultSubSolverConfig())
				require.NoError(t, err)
				fs, err := NewFieldSplitSolver(DefaultFieldSplitConfig())
				require.NoError(t, err)
				require.NoError(t, fs.SetOperators(sys, pc))
				x := make([]float64, n)
				res, err := fs.Solve(b, x)
				require.NoError(t, err)
				assert.True(t, res.Converged, "%v %v", variant, mode)
				assert.False(t, res.Stagnated)
				assert.LessOrEqual(t, trueResidual(sys.MulVec, b, x), 1.e-6*utils.Norm2(b)*(1+1.e-8))
			}
		}
	}
	{ // Test inexact sub-solves switch to flexible GMRES
		scfg := pcd.DefaultSubSolverConfig()
		scfg.Mode = types.Iterative
		pc, err := pcd.NewPCDPreconditioner(pcdOps, scfg)
		require.NoError(t, err)
		cfg := DefaultFieldSplitConfig()
		cfg.MaxIterations = 300
		cfg.Velocity.Mode = types.Iterative
		fs, err := NewFieldSplitSolver(cfg)
		require.NoError(t, err)
		require.NoError(t, fs.SetOperators(sys, pc))
		assert.Equal(t, "FGMRES", fs.Method())
		x := make([]float64, n)
		res, err := fs.Solve(b, x)
		require.NoError(t, err)
		assert.True(t, res.Converged)
		assert.LessOrEqual(t, trueResidual(sys.MulVec, b, x), 1.e-6*utils.Norm2(b)*(1+1.e-8))
	}
	{ // Test non-convergence is returned in the result, or raised on request
		pc, err := pcd.NewPCDPreconditioner(pcdOps, pcd.DefaultSubSolverConfig())
		require.NoError(t, err)
		cfg := DefaultFieldSplitConfig()
		cfg.MaxIterations = 2
		cfg.RelativeTolerance = 1.e-14
		fs, err := NewFieldSplitSolver(cfg)
		require.NoError(t, err)
		require.NoError(t, fs.SetOperators(sys, pc))
		x := make([]float64, n)
		res, err := fs.Solve(b, x)
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.Equal(t, 2, res.Iterations)

		cfg.ErrorOnNonconvergence = true
		fs, err = NewFieldSplitSolver(cfg)
		require.NoError(t, err)
		require.NoError(t, fs.SetOperators(sys, pc))
		res, err = fs.Solve(b, x)
		var lnc *types.LinearNonConvergence
		require.True(t, errors.As(err, &lnc))
		assert.Equal(t, 2, lnc.Iterations)
		assert.False(t, res.Converged)
		assert.Equal(t, res.ResidualNorm, lnc.ResidualNorm)
	}
	{ // Test a singular velocity block surfaces as a factorization error
		bad := sys
		bad.Auu = utils.NewCSR(n-ops.Structure().NP, n-ops.Structure().NP)
		pc, err := pcd.NewPCDPreconditioner(pcdOps, pcd.DefaultSubSolverConfig())
		require.NoError(t, err)
		fs, err := NewFieldSplitSolver(DefaultFieldSplitConfig())
		require.NoError(t, err)
		err = fs.SetOperators(bad, pc)
		var fe *types.FactorizationError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "Auu", fe.Operator)
	}
}
