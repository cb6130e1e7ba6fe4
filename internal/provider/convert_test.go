package provider

import "testing"

func TestHRVProxyFromStress(t *testing.T) {
	if got := HRVProxyFromStress(30); got != 70 {
		t.Errorf("Expected stress 30 to map to 70, got %v", got)
	}
	if got := HRVProxyFromStress(100); got != 0 {
		t.Errorf("Expected stress 100 to map to 0, got %v", got)
	}
	if got := HRVProxyFromStress(120); got != 0 {
		t.Errorf("Expected out-of-range stress to floor at 0, got %v", got)
	}
}

func TestStrainProxyFromCalories(t *testing.T) {
	cases := []struct {
		calories float64
		expected float64
	}{
		{450, 5},
		{449, 4},
		{0, 0},
		{2100, 21},
		{5000, 21},
	}

	for _, tc := range cases {
		if got := StrainProxyFromCalories(tc.calories); got != tc.expected {
			t.Errorf("StrainProxyFromCalories(%v): expected %v, got %v", tc.calories, tc.expected, got)
		}
	}
}

func TestQualitySleepMs(t *testing.T) {
	light, sws, rem := int64(1000), int64(2000), int64(1500)

	if got := QualitySleepMs(&light, &sws, &rem); got != 4500 {
		t.Errorf("Expected quality sleep 4500, got %d", got)
	}
	if got := QualitySleepMs(nil, &sws, nil); got != 2000 {
		t.Errorf("Expected missing stages to default to zero, got %d", got)
	}
	if got := QualitySleepMs(nil, nil, nil); got != 0 {
		t.Errorf("Expected all-missing stages to sum to zero, got %d", got)
	}
}

func TestKilojoulesToCalories(t *testing.T) {
	got := KilojoulesToCalories(4184)
	if got < 999.9 || got > 1000.1 {
		t.Errorf("Expected 4184 kJ to be about 1000 kcal, got %v", got)
	}
}

func TestSecondsToMilliseconds(t *testing.T) {
	if got := SecondsToMilliseconds(27000); got != 27000000 {
		t.Errorf("Expected 27000s to be 27000000ms, got %d", got)
	}
}
