// project.go — static acceptance + dynamic phason transform.

package lattice

import "math"

// AcceptanceRadius is the default static-acceptance radius (1/φ).
const AcceptanceRadius = 1 / phi

// TileType classifies a point by its position relative to the acceptance
// domain.
type TileType int

const (
	TileThick TileType = iota
	TileThin
)

func (t TileType) String() string {
	if t == TileThick {
		return "thick"
	}
	return "thin"
}

// StaticResult is the outcome of the static projection pass.
type StaticResult struct {
	Parallel [3]float64
	Perpendicular [3]float64
	Accepted bool
	Tile TileType
}

// StaticProject runs the fixed-matrix projection and acceptance test.
func StaticProject(hyper [6]float64, acceptanceRadius float64) StaticResult {
	par := ParallelMatrix.Project(hyper)
	perp := PerpendicularMatrix.Project(hyper)
	perpNorm := norm3(perp)

	accepted := perpNorm <= acceptanceRadius
	tile := TileThin
	if perpNorm <= acceptanceRadius/phi {
		tile = TileThick
	}

	return StaticResult{Parallel: par, Perpendicular: perp, Accepted: accepted, Tile: tile}
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// PhasonShift is a shift applied in the perpendicular subspace.
type PhasonShift struct {
	Direction [3]float64 // unit vector
	Magnitude float64
}

// DynamicResult is the outcome of the dynamic phason transform.
type DynamicResult struct {
	Displacement float64
	StructurePreserved bool
	ReprojectedParallel [3]float64
	UsedIdentityFallback bool
}

// DynamicTransform lifts the static parallel projection back to 6D via the
// Moore-Penrose pseudoinverse of ParallelMatrix (computed as
// Mᵀ(MMᵀ)⁻¹ with the 3×3 inverse via Invert3x3's cofactor formula), applies
// the phason shift in the perpendicular subspace lifted through
// PerpendicularMatrix's transpose, and re-projects to compute displacement.
func DynamicTransform(static StaticResult, shift PhasonShift, maxPhasonAmplitude float64) DynamicResult {
	gram := ParallelMatrix.Gram()
	gramInv, ok := Invert3x3(gram)

	gy := mul3x3Vec(gramInv, static.Parallel)
	lifted := ParallelMatrix.LiftTranspose(gy)

	var scaledShift [3]float64
	for i := range scaledShift {
		scaledShift[i] = shift.Direction[i] * shift.Magnitude
	}
	shiftLifted := PerpendicularMatrix.LiftTranspose(scaledShift)

	var shifted [6]float64
	for i := 0; i < 6; i++ {
		shifted[i] = lifted[i] + shiftLifted[i]
	}

	reprojected := ParallelMatrix.Project(shifted)

	var diffSq float64
	for i := 0; i < 3; i++ {
		d := reprojected[i] - static.Parallel[i]
		diffSq += d * d
	}
	displacement := math.Sqrt(diffSq)

	return DynamicResult{
		Displacement: displacement,
		StructurePreserved: shift.Magnitude <= maxPhasonAmplitude,
		ReprojectedParallel: reprojected,
		UsedIdentityFallback: !ok,
	}
}
