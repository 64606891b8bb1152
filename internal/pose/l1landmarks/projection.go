package l1landmarks

import "gonum.org/v1/gonum/spatial/r3"

// Projector maps normalized tracker landmarks (x, y in [0,1] from the top
// left of the image, z relative depth in image-width units) onto a screen
// rectangle centred on the origin with y pointing up.
type Projector struct {
	Width      float64
	Height     float64
	DepthScale float64
}

// DefaultProjector matches a 640×480 capture.
func DefaultProjector() Projector {
	return Projector{Width: 640, Height: 480, DepthScale: 1}
}

// Project maps a single normalized point.
func (p Projector) Project(n r3.Vec) r3.Vec {
	return r3.Vec{
		X: (n.X - 0.5) * p.Width,
		Y: (0.5 - n.Y) * p.Height,
		Z: n.Z * p.Width * p.DepthScale,
	}
}

// ProjectFrame projects every point of f in place.
func (p Projector) ProjectFrame(f *Frame) {
	for i := range f.Points {
		f.Points[i] = p.Project(f.Points[i])
	}
}
