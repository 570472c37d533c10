package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestOrganizeDimensions(t *testing.T) {
	cloud := New()
	cloud.Append(NewVector(0.1, 0.1, 1))
	cloud.Append(NewVector(-0.4, 0.3, 2))

	organized := Organize(cloud, 20, 100, 100)
	test.That(t, organized.IsOrganized(), test.ShouldBeTrue)
	test.That(t, organized.Width(), test.ShouldEqual, 2000)
	test.That(t, organized.Height(), test.ShouldEqual, 2000)
	test.That(t, organized.Size(), test.ShouldEqual, 2000*2000)
	test.That(t, organized.OccupiedCount(), test.ShouldEqual, 2)
}

func TestOrganizeEmptyInput(t *testing.T) {
	cloud := New()
	organized := Organize(cloud, 20, 100, 100)
	// an empty cloud comes back unchanged, not as a fresh grid
	test.That(t, organized, test.ShouldEqual, cloud)
	test.That(t, organized.IsOrganized(), test.ShouldBeFalse)
}

func TestOrganizeHighestWins(t *testing.T) {
	cloud := New()
	cloud.Append(NewVector(0.4, 0.4, 1.0))
	cloud.Append(NewVector(0.4, 0.4, 2.0))

	organized := Organize(cloud, 1, 2, 2)
	test.That(t, organized.Width(), test.ShouldEqual, 2)
	test.That(t, organized.Height(), test.ShouldEqual, 2)

	// round(0.4*1)+round(2/2) = 1 on both axes
	got, occupied := organized.AtGrid(1, 1)
	test.That(t, occupied, test.ShouldBeTrue)
	test.That(t, got.Z, test.ShouldEqual, 2.0)
	test.That(t, organized.OccupiedCount(), test.ShouldEqual, 1)

	// a lower point does not displace the stored one
	cloud2 := New()
	cloud2.Append(NewVector(0.4, 0.4, 5.0))
	cloud2.Append(NewVector(0.4, 0.4, 1.0))
	organized2 := Organize(cloud2, 1, 2, 2)
	got, _ = organized2.AtGrid(1, 1)
	test.That(t, got.Z, test.ShouldEqual, 5.0)
}

func TestOrganizeDiscardsOutOfRange(t *testing.T) {
	cloud := New()
	cloud.Append(NewVector(-3, 0, 1))  // negative cell index
	cloud.Append(NewVector(50, 0, 1))  // past the grid bound
	cloud.Append(NewVector(0.4, 0.4, 1))

	organized := Organize(cloud, 1, 2, 2)
	test.That(t, organized.OccupiedCount(), test.ShouldEqual, 1)
	got, occupied := organized.AtGrid(1, 1)
	test.That(t, occupied, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, NewVector(0.4, 0.4, 1))
}

func TestOrganizeOriginPoint(t *testing.T) {
	// a genuine (0,0,0) point occupies its cell rather than reading as empty
	cloud := New()
	cloud.Append(NewVector(0, 0, 0))

	organized := Organize(cloud, 1, 2, 2)
	got, occupied := organized.AtGrid(1, 1)
	test.That(t, occupied, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, r3.Vector{})
	test.That(t, organized.OccupiedCount(), test.ShouldEqual, 1)
}
