package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeClouds(t *testing.T) []*Cloud {
	t.Helper()
	// create cloud 0
	cloud0 := New()
	cloud0.Append(NewVector(0, 0, 0))
	cloud0.Append(NewVector(0, 0, 1))
	cloud0.Append(NewVector(0, 1, 0))
	cloud0.Append(NewVector(0, 1, 1))
	// create cloud 1
	cloud1 := New()
	cloud1.Append(NewVector(30, 0, 0))
	cloud1.Append(NewVector(30, 0, 1))
	cloud1.Append(NewVector(30, 1, 0))
	cloud1.Append(NewVector(30, 1, 1))
	cloud1.Append(NewVector(30, 0.5, 0.5))

	return []*Cloud{cloud0, cloud1}
}

func TestCalculateMean(t *testing.T) {
	clouds := makeClouds(t)
	mean0 := CalculateMeanOfPointCloud(clouds[0])
	test.That(t, mean0, test.ShouldResemble, NewVector(0, 0.5, 0.5))
	mean1 := CalculateMeanOfPointCloud(clouds[1])
	test.That(t, mean1, test.ShouldResemble, NewVector(30, 0.5, 0.5))

	test.That(t, CalculateMeanOfPointCloud(New()), test.ShouldResemble, NewVector(0, 0, 0))
}

func TestCropBox(t *testing.T) {
	clouds := makeClouds(t)
	merged := New()
	for _, c := range clouds {
		c.Iterate(func(p r3.Vector) bool {
			merged.Append(p)
			return true
		})
	}

	cropped := CropBox(merged, NewVector(-1, -1, -1), NewVector(1, 2, 2))
	test.That(t, cropped.Size(), test.ShouldEqual, 4)
	cropped.Iterate(func(p r3.Vector) bool {
		test.That(t, p.X, test.ShouldEqual, 0)
		return true
	})

	// bounds are inclusive
	cropped = CropBox(merged, NewVector(0, 0, 0), NewVector(0, 1, 1))
	test.That(t, cropped.Size(), test.ShouldEqual, 4)

	// empty input yields a fresh empty cloud
	empty := CropBox(New(), NewVector(0, 0, 0), NewVector(1, 1, 1))
	test.That(t, empty.Size(), test.ShouldEqual, 0)
}

func TestStatisticalOutlierFilter(t *testing.T) {
	cloud := New()
	// a tight cluster plus one far away point
	cloud.Append(NewVector(0, 0, 0))
	cloud.Append(NewVector(1, 0, 0))
	cloud.Append(NewVector(0, 1, 0))
	cloud.Append(NewVector(1, 1, 0))
	cloud.Append(NewVector(0, 0, 1))
	cloud.Append(NewVector(1, 0, 1))
	cloud.Append(NewVector(0, 1, 1))
	cloud.Append(NewVector(1, 1, 1))
	cloud.Append(NewVector(100, 100, 100))

	filtered, err := StatisticalOutlierFilter(cloud, 3, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 8)
	filtered.Iterate(func(p r3.Vector) bool {
		test.That(t, p.X, test.ShouldBeLessThan, 2)
		return true
	})

	_, err = StatisticalOutlierFilter(cloud, 0, 1.0)
	test.That(t, err, test.ShouldNotBeNil)

	filtered, err = StatisticalOutlierFilter(New(), 3, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filtered.Size(), test.ShouldEqual, 0)
}

func TestUpsample(t *testing.T) {
	cloud := New()
	cloud.Append(NewVector(2, 4, 6))

	out := Upsample(cloud, 2, 0.5, 0.25, 2)
	// 1 scaled original + 2*2 shifted copies
	test.That(t, out.Size(), test.ShouldEqual, 5)
	test.That(t, out.At(0), test.ShouldResemble, NewVector(1, 2, 3))
	// copy at i=0, j=0
	test.That(t, out.At(1), test.ShouldResemble, NewVector(1.25, 2.25, 3))
	// copy at i=1, j=1
	test.That(t, out.At(4), test.ShouldResemble, NewVector(1.75, 2.75, 3))
}

func TestDemean(t *testing.T) {
	clouds := makeClouds(t)
	centroid := CalculateMeanOfPointCloud(clouds[1])
	demeaned := Demean(clouds[1], centroid)
	test.That(t, demeaned.Size(), test.ShouldEqual, clouds[1].Size())
	test.That(t, CalculateMeanOfPointCloud(demeaned), test.ShouldResemble, NewVector(0, 0, 0))

	// empty input returned unchanged
	empty := New()
	test.That(t, Demean(empty, centroid), test.ShouldEqual, empty)
}
