// Package testutil provides shared test helpers for the pose packages:
// tolerance checks for vectors and rotations and small HTTP fixtures.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tolerance is the default absolute tolerance for geometry checks.
const Tolerance = 1e-9

// VecNear reports whether a and b differ by at most tol in every component.
func VecNear(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

// RotationAngle returns the angle in radians between two rotations. q and -q
// are the same rotation.
func RotationAngle(a, b quat.Number) float64 {
	d := quat.Mul(quat.Conj(a), b)
	v := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
	return 2 * math.Atan2(v, math.Abs(d.Real))
}

// AssertVecNear fails the test if got is not within tol of want.
func AssertVecNear(t testing.TB, want, got r3.Vec, tol float64, msgAndArgs ...interface{}) {
	t.Helper()
	if !VecNear(want, got, tol) {
		t.Errorf("vector = %v, want %v (tol %g) %v", got, want, tol, msgAndArgs)
	}
}

// AssertRotationNear fails the test if got rotates more than tol radians
// away from want.
func AssertRotationNear(t testing.TB, want, got quat.Number, tol float64, msgAndArgs ...interface{}) {
	t.Helper()
	if a := RotationAngle(want, got); !(a <= tol) {
		t.Errorf("rotation %v is %g rad from %v (tol %g) %v", got, a, want, tol, msgAndArgs)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
