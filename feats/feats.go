package feats

import "strings"

type Feature uint32

// CPU Features
const (
	X64_IMPLICIT Feature = 0
	BMI1         Feature = 1 << iota
	BMI2
	LZCNT
	POPCNT
	CMOV
	RDTSC
	CPUID
	AMD
)

const AllFeatures Feature = 0xffffffff

func FeatName(f Feature) string { return featNames[f] }

// Look up a feature by name, ignoring case.
func ByName(name string) (Feature, bool) {
	for f, n := range featNames {
		if strings.EqualFold(n, name) {
			return f, true
		}
	}
	return 0, false
}

// Get the names of all features set in f, in bit order.
func Names(f Feature) []string {
	var names []string
	for bit := BMI1; bit <= AMD; bit <<= 1 {
		if f&bit != 0 {
			names = append(names, featNames[bit])
		}
	}
	return names
}

var featNames = map[Feature]string{
	X64_IMPLICIT: "X64_IMPLICIT",
	BMI1:         "BMI1",
	BMI2:         "BMI2",
	LZCNT:        "LZCNT",
	POPCNT:       "POPCNT",
	CMOV:         "CMOV",
	RDTSC:        "RDTSC",
	CPUID:        "CPUID",
	AMD:          "AMD",
}
