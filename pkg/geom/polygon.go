package geom

// Area returns the horizontal (XY-plane) area of a polygon ring using the
// shoelace formula. The ring does not need to be explicitly closed.
// Degenerate rings (fewer than 3 vertices) have zero area.
func Area(ring []Vec3) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// Centroid returns the vertex-average center of a polygon ring. Good enough
// for label anchoring; not the true area-weighted centroid.
func Centroid(ring []Vec3) Vec3 {
	if len(ring) == 0 {
		return Vec3{}
	}
	var c Vec3
	for _, p := range ring {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(ring)))
}
