package utils

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/james-bowman/sparse"
)

var (
	// ParallelDegree is the number of go routines used by the sharded sparse kernels
	ParallelDegree = runtime.NumCPU()
	// ParallelRowThreshold is the row count below which kernels run serially
	ParallelRowThreshold = 20000
)

// SetParallelDegree limits the number of go routines used by MulVecTo, values < 1 mean serial
func SetParallelDegree(np int) {
	if np < 1 {
		np = 1
	}
	ParallelDegree = np
}

// DOK is the assembly storage: entries are accumulated with AddTo, then converted to CSR for the solvers
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }

func (m DOK) Set(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, val)
}

// AddTo accumulates val into entry (i,j)
func (m DOK) AddTo(i, j int, val float64) {
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m *DOK) SetReadOnly(name ...string) {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

// CSR is the operator storage used by all solves. The zero value is an empty (absent) matrix.
type CSR struct {
	M    *sparse.CSR
	name string
}

// NewCSR returns an nr x nc matrix with no stored entries
func NewCSR(nr, nc int) (R CSR) {
	R = CSR{
		sparse.NewCSR(nr, nc, make([]int, nr+1), []int{}, []float64{}),
		"unnamed",
	}
	return
}

// NewCSRFromRaw wraps compressed row arrays without copying them
func NewCSRFromRaw(nr, nc int, indptr, ind []int, data []float64) (R CSR) {
	if len(indptr) != nr+1 || len(ind) != len(data) {
		panic(fmt.Errorf("malformed CSR arrays: len(indptr) = %d, nr = %d, len(ind) = %d, len(data) = %d",
			len(indptr), nr, len(ind), len(data)))
	}
	R = CSR{
		sparse.NewCSR(nr, nc, indptr, ind, data),
		"unnamed",
	}
	return
}

// NewIdentity returns the n x n identity
func NewIdentity(n int) (R CSR) {
	var (
		indptr = make([]int, n+1)
		ind    = make([]int, n)
		data   = make([]float64, n)
	)
	for i := 0; i < n; i++ {
		indptr[i+1] = i + 1
		ind[i] = i
		data[i] = 1
	}
	return NewCSRFromRaw(n, n, indptr, ind, data)
}

func (m CSR) IsEmpty() bool { return m.M == nil }

func (m CSR) Dims() (r, c int) {
	if m.M == nil {
		return 0, 0
	}
	return m.M.Dims()
}

func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }

func (m CSR) Name() string { return m.name }

func (m CSR) SetName(name string) CSR {
	m.name = name
	return m
}

func (m CSR) NNZ() int {
	if m.M == nil {
		return 0
	}
	return len(m.M.RawMatrix().Data)
}

// Raw returns the compressed row arrays backing the matrix
func (m CSR) Raw() (indptr, ind []int, data []float64) {
	raw := m.M.RawMatrix()
	return raw.Indptr, raw.Ind, raw.Data
}

// DoNonZero calls fn for every stored entry, in row order
func (m CSR) DoNonZero(fn func(i, j int, v float64)) {
	if m.M == nil {
		return
	}
	indptr, ind, data := m.Raw()
	nr, _ := m.Dims()
	for i := 0; i < nr; i++ {
		for k := indptr[i]; k < indptr[i+1]; k++ {
			fn(i, ind[k], data[k])
		}
	}
}

// MulVecTo computes dst = A*x. Rows are sharded over ParallelDegree go routines for large
// matrices; the call returns when every shard has finished.
func (m CSR) MulVecTo(dst, x []float64) {
	m.mulVec(dst, x, 0, 1)
}

// MulVecAddTo computes dst = beta*dst + alpha*A*x
func (m CSR) MulVecAddTo(dst []float64, alpha float64, x []float64, beta float64) {
	m.mulVec(dst, x, beta, alpha)
}

func (m CSR) mulVec(dst, x []float64, beta, alpha float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(dst) != nr || len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVecTo for \"%s\": A is %dx%d, len(dst) = %d, len(x) = %d",
			m.name, nr, nc, len(dst), len(x)))
	}
	if m.M == nil {
		return
	}
	indptr, ind, data := m.Raw()
	rows := func(iMin, iMax int) {
		for i := iMin; i < iMax; i++ {
			var sum float64
			for k := indptr[i]; k < indptr[i+1]; k++ {
				sum += data[k] * x[ind[k]]
			}
			if beta == 0 {
				dst[i] = alpha * sum
			} else {
				dst[i] = beta*dst[i] + alpha*sum
			}
		}
	}
	if ParallelDegree < 2 || nr < ParallelRowThreshold {
		rows(0, nr)
		return
	}
	var (
		pm = NewPartitionMap(ParallelDegree, nr)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			kMin, kMax := pm.GetBucketRange(np)
			rows(kMin, kMax)
		}(np)
	}
	wg.Wait()
}

// Diagonal returns a copy of the main diagonal, zero where no entry is stored
func (m CSR) Diagonal() (diag []float64) {
	var (
		nr, nc = m.Dims()
	)
	diag = make([]float64, min(nr, nc))
	m.DoNonZero(func(i, j int, v float64) {
		if i == j {
			diag[i] += v
		}
	})
	return
}

// Clone returns a deep copy
func (m CSR) Clone() (R CSR) {
	if m.M == nil {
		return
	}
	var (
		nr, nc             = m.Dims()
		indptr, ind, data  = m.Raw()
		indptr2, ind2, dd2 = make([]int, len(indptr)), make([]int, len(ind)), make([]float64, len(data))
	)
	copy(indptr2, indptr)
	copy(ind2, ind)
	copy(dd2, data)
	R = NewCSRFromRaw(nr, nc, indptr2, ind2, dd2)
	R.name = m.name
	return
}

// Scale returns a copy of the matrix multiplied by alpha
func (m CSR) Scale(alpha float64) (R CSR) {
	R = m.Clone()
	if R.M == nil {
		return
	}
	_, _, data := R.Raw()
	for k := range data {
		data[k] *= alpha
	}
	return
}

// AddScaled returns m + alpha*B. Either operand may be empty.
func (m CSR) AddScaled(alpha float64, B CSR) (R CSR) {
	switch {
	case B.IsEmpty():
		return m.Clone()
	case m.IsEmpty():
		return B.Scale(alpha)
	}
	var (
		nr, nc   = m.Dims()
		br, bc   = B.Dims()
		indptr   = make([]int, nr+1)
		ind      []int
		data     []float64
		rowIndex = make(map[int]int)
	)
	if nr != br || nc != bc {
		panic(fmt.Errorf("dimension mismatch in AddScaled: %dx%d + %dx%d", nr, nc, br, bc))
	}
	aptr, aind, adata := m.Raw()
	bptr, bind, bdata := B.Raw()
	for i := 0; i < nr; i++ {
		clear(rowIndex)
		for k := aptr[i]; k < aptr[i+1]; k++ {
			if pos, ok := rowIndex[aind[k]]; ok {
				data[pos] += adata[k]
				continue
			}
			rowIndex[aind[k]] = len(ind)
			ind = append(ind, aind[k])
			data = append(data, adata[k])
		}
		for k := bptr[i]; k < bptr[i+1]; k++ {
			if pos, ok := rowIndex[bind[k]]; ok {
				data[pos] += alpha * bdata[k]
				continue
			}
			rowIndex[bind[k]] = len(ind)
			ind = append(ind, bind[k])
			data = append(data, alpha*bdata[k])
		}
		indptr[i+1] = len(ind)
	}
	if ind == nil {
		ind, data = []int{}, []float64{}
	}
	R = NewCSRFromRaw(nr, nc, indptr, ind, data)
	R.name = m.name
	return
}

// ZeroRows replaces the listed rows with diag*e_i, or with zero rows when diag is 0 (the matrix may then
// be rectangular). The matrix is modified in place when every listed row already stores its diagonal
// entry, otherwise a rebuilt copy is returned.
func (m CSR) ZeroRows(rows []int, diag float64) CSR {
	return m.zeroRowsColumns(rows, diag, false)
}

// ZeroRowsColumns replaces the listed rows and columns with diag*e_i, preserving symmetry
func (m CSR) ZeroRowsColumns(rows []int, diag float64) CSR {
	return m.zeroRowsColumns(rows, diag, true)
}

func (m CSR) zeroRowsColumns(rows []int, diag float64, columns bool) CSR {
	if m.M == nil || len(rows) == 0 {
		return m
	}
	var (
		nr, nc            = m.Dims()
		indptr, ind, data = m.Raw()
		isBC              = make([]bool, max(nr, nc))
		missingDiag       bool
	)
	for _, i := range rows {
		if i < 0 || i >= nr {
			panic(fmt.Errorf("row index %d out of range for \"%s\" with %d rows", i, m.name, nr))
		}
		isBC[i] = true
	}
	for i := 0; i < nr; i++ {
		var hasDiag bool
		for k := indptr[i]; k < indptr[i+1]; k++ {
			j := ind[k]
			switch {
			case isBC[i] && j == i && diag != 0:
				data[k] = 0
				if !hasDiag {
					data[k] = diag
					hasDiag = true
				}
			case isBC[i]:
				data[k] = 0
			case columns && isBC[j]:
				data[k] = 0
			}
		}
		if isBC[i] && !hasDiag && diag != 0 {
			missingDiag = true
		}
	}
	if !missingDiag {
		return m
	}
	// Some constrained rows had no stored diagonal, rebuild with the entry inserted
	dok := NewDOK(nr, nc)
	m.DoNonZero(func(i, j int, v float64) {
		if v != 0 {
			dok.AddTo(i, j, v)
		}
	})
	for _, i := range rows {
		dok.Set(i, i, diag)
	}
	R := dok.ToCSR()
	R.name = m.name
	return R
}

// IsSymmetric checks |a_ij - a_ji| <= tol*max|a|
func (m CSR) IsSymmetric(tol float64) bool {
	var (
		nr, nc = m.Dims()
		amax   float64
		sym    = true
	)
	if nr != nc {
		return false
	}
	m.DoNonZero(func(i, j int, v float64) {
		amax = max(amax, abs(v))
	})
	m.DoNonZero(func(i, j int, v float64) {
		if abs(v-m.At(j, i)) > tol*amax {
			sym = false
		}
	})
	return sym
}

// Equal reports whether both matrices have identical dimensions, sparsity and stored values
func (m CSR) Equal(B CSR) bool {
	if m.IsEmpty() || B.IsEmpty() {
		return m.IsEmpty() == B.IsEmpty()
	}
	if m.M == B.M {
		return true
	}
	nr, nc := m.Dims()
	if br, bc := B.Dims(); nr != br || nc != bc {
		return false
	}
	aptr, aind, adata := m.Raw()
	bptr, bind, bdata := B.Raw()
	if len(aind) != len(bind) {
		return false
	}
	for i := range aptr {
		if aptr[i] != bptr[i] {
			return false
		}
	}
	for k := range aind {
		if aind[k] != bind[k] || adata[k] != bdata[k] {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest stored magnitude
func (m CSR) MaxAbs() (amax float64) {
	m.DoNonZero(func(i, j int, v float64) {
		amax = max(amax, abs(v))
	})
	return
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
