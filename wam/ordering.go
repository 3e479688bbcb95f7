package wam

import (
	"strconv"
	"strings"
)

type ordering int

const (
	equal ordering = iota
	less
	more
)

func compareInts(i1, i2 int64) ordering {
	if i1 < i2 {
		return less
	}
	if i1 > i2 {
		return more
	}
	return equal
}

func compareStrings(s1, s2 string) ordering {
	switch strings.Compare(s1, s2) {
	case -1:
		return less
	case 1:
		return more
	}
	return equal
}

// parseNumber parses the integer value of a constant.
func parseNumber(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

// compareConstants orders two constant values numerically if both are
// numbers, and lexicographically otherwise.
func compareConstants(s1, s2 string) ordering {
	n1, ok1 := parseNumber(s1)
	n2, ok2 := parseNumber(s2)
	if ok1 && ok2 {
		return compareInts(n1, n2)
	}
	return compareStrings(s1, s2)
}

// comparator is the relation checked by a comparison instruction.
type comparator func(ordering) bool

var comparators = map[Opcode]comparator{
	Smaller:   func(o ordering) bool { return o == less },
	SmallerEq: func(o ordering) bool { return o != more },
	BiggerEq:  func(o ordering) bool { return o != less },
	Bigger:    func(o ordering) bool { return o == more },
	Unequal:   func(o ordering) bool { return o != equal },
}
