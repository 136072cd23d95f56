package game

// Collision Core. The sole predicate: two axis-aligned
// rectangles overlap with an optional signed threshold.
//
//	between(a, v, b, t) = a-t <= v <= b+t
//	overlap(A, B, t)    = between(Bx-Aw, Ax, Bx+Bw, t) && between(By-Ah, Ay, By+Bh, t)
//
// All checks are O(1) - no polygon iteration.

// TankWallThreshold permits sub-unit grazing between a tank and a wall.
const TankWallThreshold = -0.01

// ZeroThreshold is used for bullet-vs-wall and bullet-vs-tank checks.
const ZeroThreshold = 0.0

func between(a, v, b, t float64) bool {
	return a-t <= v && v <= b+t
}

// overlap reports whether rectangle A (top-left Ax,Ay, size Aw,Ah) and
// rectangle B (top-left Bx,By, size Bw,Bh) intersect, permitting the
// given signed threshold t.
func overlap(Ax, Ay, Aw, Ah, Bx, By, Bw, Bh, t float64) bool {
	return between(Bx-Aw, Ax, Bx+Bw, t) && between(By-Ah, Ay, By+Bh, t)
}

// rectOverlapsCell tests an entity rectangle against a single grid cell.
func rectOverlapsCell(x, y, size, cellX, cellY, cellSize, t float64) bool {
	return overlap(x, y, size, size, cellX, cellY, cellSize, cellSize, t)
}
