package nuget

import (
	"strconv"
	"strings"
)

// CompareVersions compares the dotted numeric prefixes of a and b and
// returns -1, 0 or +1. Build metadata ("+...") and pre-release labels
// ("-...") are ignored, missing components count as zero and non-numeric
// components as zero, so "1.0" == "1.0.0.0" == "1.0.0-beta".
func CompareVersions(a, b string) int {
	pa, pb := numericParts(a), numericParts(b)
	for i := range max(len(pa), len(pb)) {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func numericParts(v string) []int {
	v, _, _ = strings.Cut(strings.TrimSpace(v), "+")
	v, _, _ = strings.Cut(v, "-")
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err == nil && n > 0 {
			parts[i] = n
		}
	}
	return parts
}
