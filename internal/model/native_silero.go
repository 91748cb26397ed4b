//go:build silero

package model

// NativeAvailable reports that the Silero backend is compiled in.
func NativeAvailable() bool { return true }
