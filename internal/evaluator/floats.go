package evaluator

import "math"

func asFloat32(bits uint32) float32 { return math.Float32frombits(bits) }
func asFloat64(bits uint64) float64 { return math.Float64frombits(bits) }
