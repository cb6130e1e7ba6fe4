package provider

import "math"

// Named conversion functions for metrics no provider reports directly.
// The proxies are domain approximations derived from other measurements and
// must never be presented as sensor-derived values.

// HRVProxyFromStress inverts an average stress level (0-100) into an HRV
// stand-in, floored at zero.
func HRVProxyFromStress(averageStressLevel float64) float64 {
	return math.Max(0, 100-averageStressLevel)
}

// StrainProxyFromCalories buckets active kilocalories onto a 0-21 strain
// scale: round(calories/100), capped at 21.
func StrainProxyFromCalories(activeKilocalories float64) float64 {
	return math.Min(math.Round(activeKilocalories/100), 21)
}

// QualitySleepMs sums light, slow-wave and REM durations. Each missing stage
// defaults to zero individually; the sum itself is always computed.
func QualitySleepMs(lightMs, slowWaveMs, remMs *int64) int64 {
	var total int64
	if lightMs != nil {
		total += *lightMs
	}
	if slowWaveMs != nil {
		total += *slowWaveMs
	}
	if remMs != nil {
		total += *remMs
	}
	return total
}

// KilojoulesToCalories converts kilojoules to kilocalories.
func KilojoulesToCalories(kilojoules float64) float64 {
	return kilojoules / 4.184
}

// SecondsToMilliseconds converts a whole-second duration to milliseconds.
func SecondsToMilliseconds(seconds int64) int64 {
	return seconds * 1000
}
