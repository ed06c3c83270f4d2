package domain

// TrailingLevel is one rung of the R-multiple ladder.
type TrailingLevel struct {
	R           float64 `json:"rr"`
	TargetPrice float64 `json:"target_price"`
	NewStopLoss float64 `json:"new_sl"`
	Action      string  `json:"action"`
	BookPercent float64 `json:"book_percent"`
	Reached     bool    `json:"reached"`
}

// RungConfig describes one ladder rung before prices are known.
// TrailR is where the stop moves (in R) once the rung is hit.
type RungConfig struct {
	R           float64 `yaml:"rr" json:"rr"`
	TrailR      float64 `yaml:"sl_move" json:"sl_move"`
	Action      string  `yaml:"action" json:"action"`
	BookPercent float64 `yaml:"book_percent" json:"book_percent"`
}

// DefaultRungs mirrors the bot's published trailing table.
func DefaultRungs() []RungConfig {
	return []RungConfig{
		{R: 0.5, TrailR: 0, Action: "Watch closely", BookPercent: 0},
		{R: 1.0, TrailR: 0, Action: "Move SL to Entry (Breakeven)", BookPercent: 0},
		{R: 1.5, TrailR: 1.0, Action: "Book 25% profit", BookPercent: 25},
		{R: 2.0, TrailR: 1.0, Action: "Book 50%, Trail SL to 1:1", BookPercent: 50},
		{R: 2.5, TrailR: 1.5, Action: "Trail SL to 1.5R", BookPercent: 50},
		{R: 3.0, TrailR: 1.5, Action: "Book more profits", BookPercent: 65},
		{R: 3.5, TrailR: 2.0, Action: "Trail SL to 2.0R", BookPercent: 75},
		{R: 4.0, TrailR: 2.0, Action: "Near final target", BookPercent: 85},
		{R: 5.0, TrailR: 3.0, Action: "FINAL - Full exit", BookPercent: 100},
	}
}

// StopSuggestion is an advisory stop-loss at a fixed percent from live price.
type StopSuggestion struct {
	Percent float64 `json:"percent"`
	Price   float64 `json:"price"`
}
