package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// CalculateMeanOfPointCloud returns the spatial average center of a given
// point cloud.
func CalculateMeanOfPointCloud(cloud *Cloud) r3.Vector {
	if cloud.OccupiedCount() == 0 {
		return r3.Vector{}
	}
	meta := cloud.MetaData()
	n := float64(meta.count)
	return r3.Vector{X: meta.totalX / n, Y: meta.totalY / n, Z: meta.totalZ / n}
}

// CropBox returns a new cloud containing only the points within the
// axis-aligned box spanned by min and max, bounds inclusive. An empty input
// yields a fresh empty cloud.
func CropBox(cloud *Cloud, min, max r3.Vector) *Cloud {
	out := New()
	cloud.Iterate(func(p r3.Vector) bool {
		if p.X < min.X || p.X > max.X ||
			p.Y < min.Y || p.Y > max.Y ||
			p.Z < min.Z || p.Z > max.Z {
			return true
		}
		out.Append(p)
		return true
	})
	return out
}

// StatisticalOutlierFilter removes points whose mean distance to their meanK
// nearest neighbors exceeds the global mean neighbor distance by more than
// stddevMulThresh standard deviations.
func StatisticalOutlierFilter(cloud *Cloud, meanK int, stddevMulThresh float64) (*Cloud, error) {
	if meanK < 1 {
		return nil, errors.Errorf("meanK must be at least 1, got %d", meanK)
	}
	if cloud.OccupiedCount() <= meanK {
		// Not enough neighbors to estimate a distribution.
		return New(), nil
	}

	tree := ToKDTree(cloud)
	points := make([]r3.Vector, 0, cloud.Size())
	meanDistances := make([]float64, 0, cloud.Size())
	cloud.Iterate(func(p r3.Vector) bool {
		neighbors := tree.KNearestNeighbors(p, meanK, false)
		var meanDist float64
		for _, n := range neighbors {
			meanDist += p.Sub(n).Norm()
		}
		if len(neighbors) > 0 {
			meanDist /= float64(len(neighbors))
		}
		points = append(points, p)
		meanDistances = append(meanDistances, meanDist)
		return true
	})

	mean, err := stats.Mean(meanDistances)
	if err != nil {
		return nil, err
	}
	stddev, err := stats.StandardDeviation(meanDistances)
	if err != nil {
		return nil, err
	}
	threshold := mean + stddevMulThresh*stddev

	out := New()
	for i, p := range points {
		if meanDistances[i] <= threshold {
			out.Append(p)
		}
	}
	return out, nil
}

// Upsample replicates the cloud's pattern into a denser cloud. Every point is
// first added scaled down by scalingFactor, then iterations x iterations
// shifted copies of the pattern are added, each offset by
// offset + i*increment along x and offset + j*increment along y.
func Upsample(cloud *Cloud, scalingFactor, increment, offset float64, iterations int) *Cloud {
	out := NewWithPrealloc(cloud.Size() * (1 + iterations*iterations))
	cloud.Iterate(func(p r3.Vector) bool {
		out.Append(r3.Vector{X: p.X / scalingFactor, Y: p.Y / scalingFactor, Z: p.Z / scalingFactor})
		return true
	})

	upsampled := func(unscaled float64, iter int) float64 {
		return unscaled/scalingFactor + offset + float64(iter)*increment
	}
	for i := 0; i < iterations; i++ {
		for j := 0; j < iterations; j++ {
			cloud.Iterate(func(p r3.Vector) bool {
				out.Append(r3.Vector{
					X: upsampled(p.X, i),
					Y: upsampled(p.Y, j),
					Z: p.Z / scalingFactor,
				})
				return true
			})
		}
	}
	return out
}

// Demean translates the cloud so the given centroid moves to the origin. An
// empty input cloud is returned unchanged.
func Demean(cloud *Cloud, centroid r3.Vector) *Cloud {
	if cloud.Size() == 0 {
		return cloud
	}
	out := NewWithPrealloc(cloud.Size())
	cloud.Iterate(func(p r3.Vector) bool {
		out.Append(p.Sub(centroid))
		return true
	})
	return out
}
