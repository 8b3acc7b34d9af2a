package audio

import "math"

// volumeToPower maps a linear 0.0-1.0 volume to beep's base-2 exponent.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
