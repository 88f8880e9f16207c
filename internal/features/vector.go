// File: internal/features/vector.go
package features

import "fmt"

// Count is the number of behavioural metrics in a Vector.
const Count = 6

// Names lists the metric names in model input order.
var Names = [Count]string{
	"avg_mouse_speed",
	"avg_typing_speed",
	"tab_switch_rate",
	"mouse_click_rate",
	"keyboard_error_rate",
	"active_window_duration",
}

// Vector is one observation window summarised as six non-negative metrics.
type Vector struct {
	AvgMouseSpeed        float64 `json:"avg_mouse_speed"`
	AvgTypingSpeed       float64 `json:"avg_typing_speed"`
	TabSwitchRate        float64 `json:"tab_switch_rate"`
	MouseClickRate       float64 `json:"mouse_click_rate"`
	KeyboardErrorRate    float64 `json:"keyboard_error_rate"`
	ActiveWindowDuration float64 `json:"active_window_duration"`
}

// Slice returns the metrics in the order models expect them.
func (v Vector) Slice() []float64 {
	return []float64{
		v.AvgMouseSpeed,
		v.AvgTypingSpeed,
		v.TabSwitchRate,
		v.MouseClickRate,
		v.KeyboardErrorRate,
		v.ActiveWindowDuration,
	}
}

// FromSlice is the inverse of Slice.
func FromSlice(x []float64) (Vector, error) {
	if len(x) != Count {
		return Vector{}, fmt.Errorf("features: expected %d values, got %d", Count, len(x))
	}
	return Vector{
		AvgMouseSpeed:        x[0],
		AvgTypingSpeed:       x[1],
		TabSwitchRate:        x[2],
		MouseClickRate:       x[3],
		KeyboardErrorRate:    x[4],
		ActiveWindowDuration: x[5],
	}, nil
}
