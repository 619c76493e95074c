//go:build linux

package cmd

import (
	"fmt"

	perf "github.com/hodgesds/perf-utils"
	jww "github.com/spf13/jwalterweatherman"
)

type instructionCount struct {
	label        string
	level        int
	instructions uint64
}

// instructionCounter reads the CPU instruction count of every solve from the perf events interface
type instructionCounter struct {
	counts      []instructionCount
	unavailable bool
}

func newInstructionCounter() *instructionCounter { return &instructionCounter{} }

func (ic *instructionCounter) Measure(label string, level int, solve func() error) (err error) {
	if ic.unavailable {
		return solve()
	}
	var ran bool
	pv, perfErr := perf.CPUInstructions(func() error {
		ran = true
		return solve()
	})
	switch {
	case !ran:
		jww.WARN.Printf("perf events unavailable, solving without counters: %v\n", perfErr)
		ic.unavailable = true
		return solve()
	case perfErr != nil:
		return perfErr
	}
	ic.counts = append(ic.counts, instructionCount{label: label, level: level, instructions: pv.Value})
	return
}

func (ic *instructionCounter) Print() {
	if len(ic.counts) == 0 {
		return
	}
	fmt.Printf("%5s %-36s %16s\n", "level", "case", "instructions")
	for _, c := range ic.counts {
		fmt.Printf("%5d %-36s %16d\n", c.level, c.label, c.instructions)
	}
}
