package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/notargets/gopcd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for edge labeling
		en := NewEdgeKey([2]int{1, 0})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{0, 1})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{0, 10})
		assert.Equal(t, EdgeKey(10*(1<<32)), en)
		assert.Equal(t, [2]int{0, 10}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 0})
		assert.Equal(t, EdgeKey(100*(1<<32)), en)
		assert.Equal(t, [2]int{0, 100}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 1})
		assert.Equal(t, EdgeKey(100*(1<<32)+1), en)
		assert.Equal(t, [2]int{1, 100}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 100001})
		assert.Equal(t, EdgeKey(100001*(1<<32)+100), en)
		assert.Equal(t, [2]int{100, 100001}, en.GetVertices(false))

		// Test maximum/minimum indices
		en = NewEdgeKey([2]int{1, 1<<32 - 1})
		assert.Equal(t, EdgeKey((1<<32-1)<<32+1), en)
		assert.Equal(t, [2]int{1, 1<<32 - 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{1<<32 - 1, 1<<32 - 1})
		assert.Equal(t, EdgeKey(1<<64-1), en)
		assert.Equal(t, [2]int{1<<32 - 1, 1<<32 - 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{1<<32 - 1, 1})
		assert.Equal(t, EdgeKey((1<<32-1)<<32+1), en)
		assert.Equal(t, [2]int{1, 1<<32 - 1}, en.GetVertices(false))
	}
	{ // Test option parsing
		nt, err := NewNonlinearType("Picard")
		require.NoError(t, err)
		assert.Equal(t, Picard, nt)
		assert.Equal(t, "Newton", Newton.String())
		_, err = NewNonlinearType("bisection")
		assert.Error(t, err)

		for label, want := range map[string]PCDVariant{"BRM1": BRM1, "brm2": BRM2, "ESW": BRM2, " esw ": BRM2} {
			pv, err := NewPCDVariant(label)
			require.NoError(t, err)
			assert.Equal(t, want, pv)
		}
		_, err = NewPCDVariant("SEW")
		assert.Error(t, err)

		sm, err := NewSolveMode("iterative")
		require.NoError(t, err)
		assert.Equal(t, Iterative, sm)
		assert.Equal(t, "direct", Direct.String())

		cc, err := NewConvergenceCriterion("incremental")
		require.NoError(t, err)
		assert.Equal(t, IncrementalCriterion, cc)
	}
}

func identityBlocks(nu, np int) (bs BlockSystem) {
	bs = BlockSystem{
		Auu: utils.NewIdentity(nu),
		Aup: utils.NewCSR(nu, np),
		Apu: utils.NewCSR(np, nu),
		App: utils.NewIdentity(np),
		Bu:  make([]float64, nu),
		Bp:  make([]float64, np),
	}
	return
}

func TestBlockSystem(t *testing.T) {
	{ // Test conformance checks
		bs := identityBlocks(4, 2)
		require.NoError(t, bs.Validate())
		assert.Equal(t, BlockStructure{NU: 4, NP: 2}, bs.Structure())

		bad := bs
		bad.Aup = utils.NewCSR(4, 3)
		var ae *AssemblyError
		assert.True(t, errors.As(bad.Validate(), &ae))
		assert.Equal(t, "Aup", ae.Operator)

		bad = bs
		bad.Bp = make([]float64, 5)
		assert.True(t, errors.As(bad.Validate(), &ae))

		bad = bs
		bad.Apu = utils.CSR{}
		assert.True(t, errors.As(bad.Validate(), &ae))

		noApp := bs
		noApp.App = utils.CSR{}
		assert.NoError(t, noApp.Validate())

		assert.Error(t, BlockStructure{NU: 3}.Validate())
	}
	{ // Test the mixed operator product
		dok := utils.NewDOK(2, 1)
		dok.Set(0, 0, -1)
		dok.Set(1, 0, -2)
		bs := BlockSystem{
			Auu: utils.NewIdentity(2),
			Aup: dok.ToCSR(),
		}
		dok2 := utils.NewDOK(1, 2)
		dok2.Set(0, 0, 1)
		dok2.Set(0, 1, 2)
		bs.Apu = dok2.ToCSR()
		y := make([]float64, 3)
		bs.MulVec(y, []float64{1, 1, 1})
		assert.Equal(t, []float64{0, -1, 3}, y)
		bs.Bu = []float64{1, 2}
		assert.Equal(t, []float64{1, 2, 0}, bs.RHS())
	}
	{ // Test PCD operator checks
		po := PCDOperators{
			Ap: utils.NewIdentity(3),
			Mp: utils.NewIdentity(3),
			Fp: utils.NewIdentity(3),
			Nu: 0.02,
		}
		assert.NoError(t, po.Validate())
		po.Nu = 0
		assert.Error(t, po.Validate())
		po.Nu = 1
		po.BCDofs = []int{3}
		assert.Error(t, po.Validate())
	}
}

func TestErrors(t *testing.T) {
	var (
		fe  = &FactorizationError{Operator: "Ap", Err: utils.ErrSingular}
		err = &SolveError{Iteration: 3, ResidualNorm: 1, InitialNorm: 2, Err: fmt.Errorf("building: %w", fe)}
	)
	var target *FactorizationError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "Ap", target.Operator)
	assert.True(t, errors.Is(err, utils.ErrSingular))
	assert.Contains(t, err.Error(), "nonlinear iteration 3")
	lnc := &LinearNonConvergence{Iterations: 100}
	assert.Contains(t, lnc.Error(), "100 iterations")
}
