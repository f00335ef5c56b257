// File: internal/computer/sandbox/scale.go
package sandbox

// scaler converts between the model-space reference viewport and the remote
// machine's physical screen. Both directions clamp into [0, dim-1] so an
// out-of-range model coordinate can never escape the screen.
type scaler struct {
	modelW, modelH   int
	screenW, screenH int
}

func (s scaler) toScreen(x, y int) (int, int) {
	sx := x * s.screenW / s.modelW
	sy := y * s.screenH / s.modelH
	return clamp(sx, s.screenW), clamp(sy, s.screenH)
}

func (s scaler) toModel(x, y int) (int, int) {
	mx := x * s.modelW / s.screenW
	my := y * s.modelH / s.screenH
	return clamp(mx, s.modelW), clamp(my, s.modelH)
}

func clamp(v, dim int) int {
	if v < 0 {
		return 0
	}
	if v > dim-1 {
		return dim - 1
	}
	return v
}
