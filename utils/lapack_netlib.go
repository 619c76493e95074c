//go:build netlib
// +build netlib

package utils

import (
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Built with -tags netlib the dense BLAS kernels behind gonum's band Cholesky, the GMRES Hessenberg
// solve and the Krylov vector updates are routed to the system CBLAS
func init() {
	blas64.Use(netblas.Implementation{})
	jww.INFO.Println("Using netlib to accelerate BLAS")
}
