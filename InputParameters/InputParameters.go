package InputParameters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/krylov"
	"github.com/notargets/gopcd/nonlinear"
	"github.com/notargets/gopcd/pcd"
	"github.com/notargets/gopcd/types"
	"go.uber.org/multierr"
)

// Problems that can be named in an input file
var ProblemNames = []string{"step", "channel", "manufactured", "mesh"}

// LinearParameters configure the field split Krylov solver and its sub-solves
type LinearParameters struct {
	RelativeTolerance     float64    `json:"RelativeTolerance"`
	AbsoluteTolerance     float64    `json:"AbsoluteTolerance"`
	MaxIterations         int        `json:"MaxIterations"`
	Restart               int        `json:"Restart"`
	VelocitySolve         string     `json:"VelocitySolve"` // direct or iterative
	PressureSolve         string     `json:"PressureSolve"` // Ap and Mp, direct or iterative
	VelocitySweeps        int        `json:"VelocitySweeps"`
	ApSweeps              int        `json:"ApSweeps"`
	MpIterations          int        `json:"MpIterations"`
	MpEigenBounds         [2]float64 `json:"MpEigenBounds"`
	ErrorOnNonconvergence bool       `json:"ErrorOnNonconvergence"`
	Monitor               bool       `json:"Monitor"`
}

// Parameters obtained from the YAML input file
type InputParametersNS struct {
	Title                 string            `json:"Title"`
	Problem               string            `json:"Problem"`
	MeshFile              string            `json:"MeshFile"`
	Markers               map[string]string `json:"Markers"` // mesh file tag -> wall, inflow or outflow
	Level                 int               `json:"Level"`
	Stretch               float64           `json:"Stretch"`
	Resolution            int               `json:"Resolution"` // cells across the channel and manufactured problems
	Viscosity             float64           `json:"Viscosity"`
	Alpha                 float64           `json:"Alpha"`
	NonlinearSolver       string            `json:"NonlinearSolver"`
	PCDStrategy           string            `json:"PCDStrategy"`
	Criterion             string            `json:"Criterion"`
	RelativeTolerance     float64           `json:"RelativeTolerance"`
	AbsoluteTolerance     float64           `json:"AbsoluteTolerance"`
	MaxIterations         int               `json:"MaxIterations"`
	Relaxation            float64           `json:"Relaxation"`
	LineSearch            bool              `json:"LineSearch"`
	LagPCD                bool              `json:"LagPCD"`
	ErrorOnNonconvergence bool              `json:"ErrorOnNonconvergence"`
	Report                bool              `json:"Report"`
	Linear                LinearParameters  `json:"Linear"`
}

// NewInputParametersNS holds the defaults, keys missing from a parsed file keep them
func NewInputParametersNS() (ip *InputParametersNS) {
	ip = &InputParametersNS{}
	ip.Defaults()
	return
}

func (ip *InputParametersNS) Defaults() {
	var (
		nl  = nonlinear.DefaultConfig()
		lin = krylov.DefaultFieldSplitConfig()
	)
	*ip = InputParametersNS{
		Title:                 "Backward facing step",
		Problem:               "step",
		Level:                 0,
		Stretch:               1,
		Resolution:            8,
		Viscosity:             0.02,
		Alpha:                 1,
		NonlinearSolver:       "newton",
		PCDStrategy:           "BRM1",
		Criterion:             "residual",
		RelativeTolerance:     nl.RelativeTolerance,
		AbsoluteTolerance:     nl.AbsoluteTolerance,
		MaxIterations:         nl.MaxIterations,
		Relaxation:            nl.Relaxation,
		ErrorOnNonconvergence: nl.ErrorOnNonconvergence,
		Report:                nl.Report,
		Linear: LinearParameters{
			RelativeTolerance: lin.RelativeTolerance,
			AbsoluteTolerance: lin.AbsoluteTolerance,
			MaxIterations:     lin.MaxIterations,
			Restart:           lin.Restart,
			VelocitySolve:     "direct",
			PressureSolve:     "direct",
			VelocitySweeps:    lin.Velocity.Sweeps,
			ApSweeps:          nl.PCD.Sweeps,
			MpIterations:      nl.PCD.MpIterations,
			MpEigenBounds:     nl.PCD.MpEigenBounds,
		},
	}
}

func (ip *InputParametersNS) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// Validate reports every problem of the parameter set at once
func (ip *InputParametersNS) Validate() (err error) {
	if !isProblem(ip.Problem) {
		err = multierr.Append(err, fmt.Errorf("unknown problem \"%s\", choose one of %s",
			ip.Problem, strings.Join(ProblemNames, ", ")))
	}
	if strings.ToLower(ip.Problem) == "mesh" {
		if len(ip.MeshFile) == 0 {
			err = multierr.Append(err, fmt.Errorf("problem mesh needs a MeshFile"))
		}
		if _, mErr := ip.MarkerMap(); mErr != nil {
			err = multierr.Append(err, mErr)
		}
	}
	if ip.Level < 0 {
		err = multierr.Append(err, fmt.Errorf("refinement level must be non negative, have %d", ip.Level))
	}
	if !(ip.Stretch > 0) {
		err = multierr.Append(err, fmt.Errorf("stretch must be positive, have %g", ip.Stretch))
	}
	if ip.Resolution < 1 {
		err = multierr.Append(err, fmt.Errorf("resolution must be positive, have %d", ip.Resolution))
	}
	if !(ip.Viscosity > 0) {
		err = multierr.Append(err, fmt.Errorf("viscosity must be positive, have %g", ip.Viscosity))
	}
	if ip.Alpha < 0 || ip.Alpha > 1 {
		err = multierr.Append(err, fmt.Errorf("alpha must lie in [0,1], have %g", ip.Alpha))
	}
	if _, nErr := ip.NonlinearConfig(); nErr != nil {
		err = multierr.Append(err, nErr)
	}
	if _, lErr := ip.LinearConfig(); lErr != nil {
		err = multierr.Append(err, lErr)
	}
	return
}

func isProblem(name string) bool {
	for _, p := range ProblemNames {
		if strings.ToLower(name) == p {
			return true
		}
	}
	return false
}

// MarkerMap translates the mesh file tags of the input file to boundary markers
func (ip *InputParametersNS) MarkerMap() (markers map[string]int, err error) {
	if len(ip.Markers) == 0 {
		return nil, fmt.Errorf("no mesh boundary tags given in Markers")
	}
	markers = make(map[string]int)
	for tag, kind := range ip.Markers {
		var m int
		switch strings.ToLower(kind) {
		case "wall", "noslip":
			m = geometry2D.MarkerWall
		case "inflow", "inlet":
			m = geometry2D.MarkerInflow
		case "outflow", "outlet":
			m = geometry2D.MarkerOutflow
		default:
			return nil, fmt.Errorf("tag %s: unknown boundary kind \"%s\", choose one of wall, inflow, outflow", tag, kind)
		}
		markers[strings.ToLower(tag)] = m
	}
	return
}

func (ip *InputParametersNS) pcdConfig() (cfg pcd.SubSolverConfig, err error) {
	cfg = pcd.DefaultSubSolverConfig()
	if cfg.Mode, err = types.NewSolveMode(ip.Linear.PressureSolve); err != nil {
		return
	}
	cfg.Sweeps = ip.Linear.ApSweeps
	cfg.MpIterations = ip.Linear.MpIterations
	cfg.MpEigenBounds = ip.Linear.MpEigenBounds
	return
}

// NonlinearConfig translates the outer solver parameters, the result is validated
func (ip *InputParametersNS) NonlinearConfig() (cfg nonlinear.Config, err error) {
	cfg = nonlinear.DefaultConfig()
	var e error
	if cfg.Type, e = types.NewNonlinearType(ip.NonlinearSolver); e != nil {
		err = multierr.Append(err, e)
	}
	if cfg.PCDVariant, e = types.NewPCDVariant(ip.PCDStrategy); e != nil {
		err = multierr.Append(err, e)
	}
	if cfg.Criterion, e = types.NewConvergenceCriterion(ip.Criterion); e != nil {
		err = multierr.Append(err, e)
	}
	if cfg.PCD, e = ip.pcdConfig(); e != nil {
		err = multierr.Append(err, e)
	}
	if err != nil {
		return
	}
	cfg.RelativeTolerance = ip.RelativeTolerance
	cfg.AbsoluteTolerance = ip.AbsoluteTolerance
	cfg.MaxIterations = ip.MaxIterations
	cfg.Relaxation = ip.Relaxation
	cfg.LineSearch = ip.LineSearch
	cfg.LagPCD = ip.LagPCD
	cfg.ErrorOnNonconvergence = ip.ErrorOnNonconvergence
	cfg.Report = ip.Report
	err = cfg.Validate()
	return
}

// LinearConfig translates the Krylov solver parameters, the result is validated
func (ip *InputParametersNS) LinearConfig() (cfg krylov.FieldSplitConfig, err error) {
	var (
		lp = ip.Linear
	)
	cfg = krylov.DefaultFieldSplitConfig()
	if cfg.Velocity.Mode, err = types.NewSolveMode(lp.VelocitySolve); err != nil {
		return
	}
	cfg.Velocity.Sweeps = lp.VelocitySweeps
	cfg.RelativeTolerance = lp.RelativeTolerance
	cfg.AbsoluteTolerance = lp.AbsoluteTolerance
	cfg.MaxIterations = lp.MaxIterations
	cfg.Restart = lp.Restart
	cfg.ErrorOnNonconvergence = lp.ErrorOnNonconvergence
	cfg.Monitor = lp.Monitor
	err = cfg.Validate()
	return
}

func (ip *InputParametersNS) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Problem\n", ip.Problem)
	if len(ip.MeshFile) != 0 {
		fmt.Printf("[%s]\t= Mesh File\n", ip.MeshFile)
	}
	fmt.Printf("[%d]\t\t\t\t= Refinement Level\n", ip.Level)
	fmt.Printf("%8.5f\t\t= Viscosity (Re = %g)\n", ip.Viscosity, 2/ip.Viscosity)
	fmt.Printf("%8.5f\t\t= Alpha\n", ip.Alpha)
	fmt.Printf("[%s]\t\t\t= Nonlinear Solver\n", ip.NonlinearSolver)
	fmt.Printf("[%s]\t\t\t= PCD Strategy\n", ip.PCDStrategy)
	fmt.Printf("%8.2e\t\t= Relative Tolerance\n", ip.RelativeTolerance)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", ip.MaxIterations)
	fmt.Printf("%8.2e\t\t= Linear Relative Tolerance\n", ip.Linear.RelativeTolerance)
	fmt.Printf("[%d/%d]\t\t\t= Linear Max Iterations/Restart\n", ip.Linear.MaxIterations, ip.Linear.Restart)
	fmt.Printf("[%s/%s]\t\t= Velocity/Pressure Solves\n", ip.Linear.VelocitySolve, ip.Linear.PressureSolve)
	keys := make([]string, len(ip.Markers))
	i := 0
	for k := range ip.Markers {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Markers[%s] = %v\n", key, ip.Markers[key])
	}
}
