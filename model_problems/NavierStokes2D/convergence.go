package NavierStokes2D

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

type ConvergencePoint struct {
	N              int // elements per side
	NDofs          int
	ErrorU, ErrorP float64
}

// ConvergenceStudy holds the discretization errors of one problem over increasing resolutions
type ConvergenceStudy struct {
	Title  string
	Points []ConvergencePoint
}

func NewConvergenceStudy(title string) *ConvergenceStudy {
	return &ConvergenceStudy{Title: title}
}

func (cs *ConvergenceStudy) Add(n int, rep Report) {
	cs.Points = append(cs.Points, ConvergencePoint{N: n, NDofs: rep.NDofs, ErrorU: rep.ErrorU, ErrorP: rep.ErrorP})
}

// Orders returns the observed orders between successive points, with h proportional to 1/N
func (cs *ConvergenceStudy) Orders() (orderU, orderP []float64) {
	rate := func(e0, e1 float64, n0, n1 int) float64 {
		return math.Log(e0/e1) / math.Log(float64(n1)/float64(n0))
	}
	for i := 1; i < len(cs.Points); i++ {
		p0, p1 := cs.Points[i-1], cs.Points[i]
		orderU = append(orderU, rate(p0.ErrorU, p1.ErrorU, p0.N, p1.N))
		orderP = append(orderP, rate(p0.ErrorP, p1.ErrorP, p0.N, p1.N))
	}
	return
}

func (cs *ConvergenceStudy) Print() {
	orderU, orderP := cs.Orders()
	fmt.Printf("Title = %s\n", cs.Title)
	fmt.Printf("%6s %8s %12s %7s %12s %7s\n", "N", "ndofs", "|u-uh|", "order", "|p-ph|", "order")
	for i, pt := range cs.Points {
		if i == 0 {
			fmt.Printf("%6d %8d %12.4e %7s %12.4e %7s\n", pt.N, pt.NDofs, pt.ErrorU, "-", pt.ErrorP, "-")
			continue
		}
		fmt.Printf("%6d %8d %12.4e %7.2f %12.4e %7.2f\n", pt.N, pt.NDofs, pt.ErrorU, orderU[i-1], pt.ErrorP, orderP[i-1])
	}
}

var convergenceHeader = []string{"title", "n", "ndofs", "errorU", "errorP"}

// WriteConvergenceCSV writes the studies one row per point, the header first
func WriteConvergenceCSV(w io.Writer, studies ...*ConvergenceStudy) (err error) {
	cw := csv.NewWriter(w)
	if err = cw.Write(convergenceHeader); err != nil {
		return
	}
	for _, cs := range studies {
		for _, pt := range cs.Points {
			rec := []string{
				cs.Title,
				strconv.Itoa(pt.N),
				strconv.Itoa(pt.NDofs),
				strconv.FormatFloat(pt.ErrorU, 'g', -1, 64),
				strconv.FormatFloat(pt.ErrorP, 'g', -1, 64),
			}
			if err = cw.Write(rec); err != nil {
				return
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadConvergenceCSV groups the rows of a file written by WriteConvergenceCSV by title, points sorted by N
func ReadConvergenceCSV(r io.Reader) (studies []*ConvergenceStudy, err error) {
	var (
		records [][]string
	)
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(convergenceHeader)
	if records, err = cr.ReadAll(); err != nil {
		return
	}
	byTitle := make(map[string]*ConvergenceStudy)
	for i, rec := range records {
		if i == 0 {
			continue
		}
		var pt ConvergencePoint
		if pt, err = parseConvergenceRecord(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		cs, ok := byTitle[rec[0]]
		if !ok {
			cs = NewConvergenceStudy(rec[0])
			byTitle[rec[0]] = cs
			studies = append(studies, cs)
		}
		cs.Points = append(cs.Points, pt)
	}
	for _, cs := range studies {
		sort.Slice(cs.Points, func(i, j int) bool { return cs.Points[i].N < cs.Points[j].N })
	}
	return
}

func parseConvergenceRecord(rec []string) (pt ConvergencePoint, err error) {
	if pt.N, err = strconv.Atoi(rec[1]); err != nil {
		return
	}
	if pt.NDofs, err = strconv.Atoi(rec[2]); err != nil {
		return
	}
	if pt.ErrorU, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return
	}
	pt.ErrorP, err = strconv.ParseFloat(rec[4], 64)
	return
}
