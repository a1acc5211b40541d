package xp

// MaxLevel is the cap of the level curve. Cumulative XP beyond the last
// threshold still maps to MaxLevel.
const MaxLevel = 20

// goalXP[level-1] is the cumulative XP required to reach that level.
// Strictly increasing; level 1 starts at 0.
var goalXP = [MaxLevel]int{
	0,    // 1
	10,   // 2
	25,   // 3
	45,   // 4
	70,   // 5
	100,  // 6
	140,  // 7
	190,  // 8
	250,  // 9
	320,  // 10
	400,  // 11
	500,  // 12
	620,  // 13
	760,  // 14
	920,  // 15
	1100, // 16
	1300, // 17
	1550, // 18
	1850, // 19
	2200, // 20
}

// Progress describes where a cumulative XP total sits on the curve.
type Progress struct {
	Level    int `json:"level"`
	InLevel  int `json:"in_level"`
	Span     int `json:"span"`
	NextGoal int `json:"next_goal"`
	Pct      int `json:"pct"`
}

// Level maps cumulative XP to a level in [1, MaxLevel]. Total for all xp;
// negative input is treated as zero.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := 1
	for i := 1; i < MaxLevel; i++ {
		if xp < goalXP[i] {
			break
		}
		level = i + 1
	}
	return level
}

// ProgressAt returns the full progress tuple at a cumulative XP total.
// At MaxLevel there is no next threshold: span is pinned to 1 and the bar
// reads 100% so callers never divide by zero.
func ProgressAt(xp int) Progress {
	if xp < 0 {
		xp = 0
	}
	level := Level(xp)
	if level >= MaxLevel {
		return Progress{
			Level:    MaxLevel,
			InLevel:  1,
			Span:     1,
			NextGoal: goalXP[MaxLevel-1],
			Pct:      100,
		}
	}
	floor := goalXP[level-1]
	next := goalXP[level]
	span := next - floor
	inLevel := xp - floor
	return Progress{
		Level:    level,
		InLevel:  inLevel,
		Span:     span,
		NextGoal: next,
		Pct:      inLevel * 100 / span,
	}
}

// GoalFor returns the cumulative XP threshold of a level, clamped to the
// table bounds.
func GoalFor(level int) int {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return goalXP[level-1]
}
