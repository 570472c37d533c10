package pointcloud

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ICPConfig holds configuration for ICP registration.
type ICPConfig struct {
	// MaxIterations is the iteration cap.
	MaxIterations int
	// Tolerance stops iteration once the mean squared correspondence
	// error improves by less than this between iterations.
	Tolerance float64
	// MaxCorrespondDist is the largest distance at which a source point
	// is paired with a target point.
	MaxCorrespondDist float64
}

// DefaultICPConfig returns the registration defaults.
func DefaultICPConfig() ICPConfig {
	return ICPConfig{
		MaxIterations:     50,
		Tolerance:         1e-8,
		MaxCorrespondDist: math.MaxFloat64,
	}
}

// ICPResult is the outcome of an ICP registration.
type ICPResult struct {
	// Transform is the 4x4 homogeneous transform aligning the source
	// cloud to the target. It is the identity when ICP did not converge.
	Transform *mat.Dense
	// FitnessScore is the mean squared distance between corresponding
	// points under the final transform.
	FitnessScore float64
	// Iterations is the number of iterations performed.
	Iterations int
	// Converged reports whether the error improvement fell below the
	// configured tolerance before the iteration cap.
	Converged bool
}

// RegisterICP aligns the source cloud to the target with iterative closest
// point registration and returns the aligned cloud. An empty source is not an
// error; it yields an empty aligned cloud and an identity transform with
// Converged false, as does failure to converge. Callers must check Converged.
func RegisterICP(source *Cloud, target *KDTree, cfg ICPConfig, logger golog.Logger) (*Cloud, ICPResult) {
	result := ICPResult{Transform: identityTransform()}
	if source.Size() == 0 {
		logger.Warn("RegisterICP - empty cloud")
		return New(), result
	}

	src := make([]r3.Vector, 0, source.Size())
	source.Iterate(func(p r3.Vector) bool {
		src = append(src, p)
		return true
	})

	current := identityTransform()
	prevErr := math.MaxFloat64
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		result.Iterations = iter + 1

		transformed := transformPoints(src, current)
		srcCorr, tgtCorr, meanSqErr := findCorrespondences(transformed, target, cfg.MaxCorrespondDist)
		if len(srcCorr) < 3 {
			break
		}
		result.FitnessScore = meanSqErr

		improvement := prevErr - meanSqErr
		if improvement < cfg.Tolerance && improvement >= 0 {
			result.Converged = true
			break
		}
		prevErr = meanSqErr

		incremental := estimateRigidTransform(srcCorr, tgtCorr)
		next := mat.NewDense(4, 4, nil)
		next.Mul(incremental, current)
		current = next
	}

	if !result.Converged {
		logger.Error("RegisterICP - ICP did not converge")
		return TransformCloud(source, result.Transform), result
	}

	result.Transform = current
	logger.Infow("RegisterICP - ICP converged", "score", result.FitnessScore, "iterations", result.Iterations)
	return TransformCloud(source, current), result
}

// TransformCloud applies a 4x4 homogeneous transform to every point of the
// cloud, producing a new unorganized cloud.
func TransformCloud(cloud *Cloud, transform *mat.Dense) *Cloud {
	out := NewWithPrealloc(cloud.Size())
	cloud.Iterate(func(p r3.Vector) bool {
		out.Append(transformPoint(p, transform))
		return true
	})
	return out
}

func identityTransform() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func transformPoint(p r3.Vector, m *mat.Dense) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}

func transformPoints(points []r3.Vector, m *mat.Dense) []r3.Vector {
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = transformPoint(p, m)
	}
	return out
}

// findCorrespondences pairs each source point with its nearest target point
// within maxDist and returns the mean squared pair distance.
func findCorrespondences(source []r3.Vector, target *KDTree, maxDist float64) (srcCorr, tgtCorr []r3.Vector, meanSqErr float64) {
	var sumSq float64
	for _, sp := range source {
		nearest, dist, ok := target.NearestNeighbor(sp)
		if !ok || dist > maxDist {
			continue
		}
		srcCorr = append(srcCorr, sp)
		tgtCorr = append(tgtCorr, nearest)
		sumSq += dist * dist
	}
	if len(srcCorr) == 0 {
		return nil, nil, math.MaxFloat64
	}
	return srcCorr, tgtCorr, sumSq / float64(len(srcCorr))
}

// estimateRigidTransform computes the least squares rigid transform mapping
// the source correspondences onto the target ones, via SVD of the
// cross-covariance (Kabsch).
func estimateRigidTransform(source, target []r3.Vector) *mat.Dense {
	var srcCentroid, tgtCentroid r3.Vector
	n := float64(len(source))
	for i := range source {
		srcCentroid = srcCentroid.Add(source[i])
		tgtCentroid = tgtCentroid.Add(target[i])
	}
	srcCentroid = srcCentroid.Mul(1 / n)
	tgtCentroid = tgtCentroid.Mul(1 / n)

	h := mat.NewDense(3, 3, nil)
	for i := range source {
		s := source[i].Sub(srcCentroid)
		d := target[i].Sub(tgtCentroid)
		outer := mat.NewDense(3, 3, []float64{
			s.X * d.X, s.X * d.Y, s.X * d.Z,
			s.Y * d.X, s.Y * d.Y, s.Y * d.Z,
			s.Z * d.X, s.Z * d.Y, s.Z * d.Z,
		})
		h.Add(h, outer)
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDThin) {
		return identityTransform()
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r := mat.NewDense(3, 3, nil)
	r.Mul(&v, u.T())
	if mat.Det(r) < 0 {
		// Reflection case; flip the sign of V's last column.
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	rp := transformPoint(srcCentroid, embedRotation(r))
	t := tgtCentroid.Sub(rp)

	out := embedRotation(r)
	out.Set(0, 3, t.X)
	out.Set(1, 3, t.Y)
	out.Set(2, 3, t.Z)
	return out
}

func embedRotation(r *mat.Dense) *mat.Dense {
	out := identityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, r.At(i, j))
		}
	}
	return out
}
