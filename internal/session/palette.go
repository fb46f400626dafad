package session

// palette is the fixed color pool. Assignment is round-robin by admission
// index, which keeps colors deterministic and collision-tolerant without
// any global reservation.
var palette = []string{
	"#30bced",
	"#6eeb83",
	"#ffbc42",
	"#ecd444",
	"#ee6352",
	"#9ac2c9",
	"#8acb88",
	"#1be7ff",
}

// PaletteSize is exported for tests and diagnostics.
func PaletteSize() int { return len(palette) }
