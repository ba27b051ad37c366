// Package viewport translates world-space coordinates into the local space
// of a single screen in the vertically stacked rig. It is a pure function
// of the world configuration: adding or removing screens is a configuration
// change, never a code change.
package viewport

import "galaxy-snake/internal/sim"

// Mapper answers coordinate translation and visibility queries for a
// configured world. The zero value is not usable; construct with NewMapper.
type Mapper struct {
	cfg sim.WorldConfig
}

// NewMapper builds a mapper for the given world configuration.
func NewMapper(cfg sim.WorldConfig) Mapper {
	return Mapper{cfg: cfg.Normalized()}
}

// ScreenCount reports the number of screens tiling the world.
func (m Mapper) ScreenCount() int { return m.cfg.ScreenCount }

// BandTop returns the world-space Y coordinate where screen index's band
// begins. Screen indices are 1-based; screen i owns
// [(i-1)*H, i*H) vertically at full world width.
func (m Mapper) BandTop(index int) int {
	return (index - 1) * m.cfg.ScreenHeight
}

// ToLocal converts an absolute world-space point into screen index's local
// coordinate space.
func (m Mapper) ToLocal(index int, p sim.Point) sim.Point {
	return sim.Point{X: p.X, Y: p.Y - m.BandTop(index)}
}

// Visible reports whether a size x size box at the local position
// intersects the screen's own rectangle.
func (m Mapper) Visible(local sim.Point, size int) bool {
	return local.X+size > 0 && local.X < m.cfg.ScreenWidth &&
		local.Y+size > 0 && local.Y < m.cfg.ScreenHeight
}

// Owner returns the 1-based index of the screen whose band contains the
// world-space point, or 0 when the point lies outside the world.
func (m Mapper) Owner(p sim.Point) int {
	if p.X < 0 || p.X >= m.cfg.WorldWidth() || p.Y < 0 || p.Y >= m.cfg.WorldHeight() {
		return 0
	}
	return p.Y/m.cfg.ScreenHeight + 1
}
