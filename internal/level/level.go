// Package level derives level and rank from total XP.
//
// The threshold table is the single source of truth: a user's level is the
// largest index whose threshold is at or below their total XP. Level and
// rank must never be stored as independently mutable state; callers
// recompute them from total XP on every read.
package level

// thresholds[i] is the minimum total XP for level i+1. Monotonically
// increasing, thresholds[0] = 0.
var thresholds = []int64{
	0,    // Level 1
	100,  // Level 2
	250,  // Level 3
	500,  // Level 4
	1000, // Level 5
	1750, // Level 6
	2750, // Level 7
	4000, // Level 8
	5500, // Level 9
	7500, // Level 10
}

// ranks[i] is the display title for level i+1.
var ranks = []string{
	"Tourist",
	"Visitor",
	"Explorer",
	"Adventurer",
	"Discoverer",
	"Pathfinder",
	"Wayfarer",
	"Navigator",
	"Argonaut",
	"Legend of Colchis",
}

// Info is the derived progression state for a given total XP.
type Info struct {
	Level       int    // 1-based level
	Rank        string // display title for the level
	XPIntoLevel int64  // XP accumulated past the current level's threshold
	XPForNext   int64  // XP remaining until the next level; 0 at max level
}

// MaxLevel returns the highest defined level.
func MaxLevel() int {
	return len(thresholds)
}

// Compute derives level info from total XP. Pure and deterministic; negative
// input is clamped to zero, XP beyond the highest threshold saturates at the
// max level.
func Compute(totalXP int64) Info {
	if totalXP < 0 {
		totalXP = 0
	}

	lvl := 1
	for i, threshold := range thresholds {
		if totalXP >= threshold {
			lvl = i + 1
		}
	}

	info := Info{
		Level:       lvl,
		Rank:        ranks[lvl-1],
		XPIntoLevel: totalXP - thresholds[lvl-1],
	}
	if lvl < len(thresholds) {
		info.XPForNext = thresholds[lvl] - totalXP
	}
	return info
}

// ProgressPercent returns how far through the current level the given total
// XP is, in [0, 100]. Always 100 at the max level.
func ProgressPercent(totalXP int64) float64 {
	info := Compute(totalXP)
	if info.Level >= len(thresholds) {
		return 100.0
	}
	levelRange := thresholds[info.Level] - thresholds[info.Level-1]
	pct := float64(info.XPIntoLevel) / float64(levelRange) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
