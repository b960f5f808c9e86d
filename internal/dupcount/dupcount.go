package dupcount

import (
	"cmp"
	"slices"
)

// Tally maps a normalized sentence key to its occurrence count. It stands in
// for a pooled sentence list: the ratio only depends on frequencies.
type Tally map[string]int

func Count(keys []string) Tally {
	t := make(Tally, len(keys))
	for _, k := range keys {
		t[k]++
	}
	return t
}

// Ratio is the duplication ratio of a key list.
func Ratio(keys []string) float64 {
	return Count(keys).Ratio()
}

// Merge adds every occurrence in other to t.
func (t Tally) Merge(other Tally) {
	for k, v := range other {
		t[k] += v
	}
}

// Total is the number of occurrences, i.e. the length of the pooled list.
func (t Tally) Total() int {
	total := 0
	for _, v := range t {
		total += v
	}
	return total
}

// Split returns the occurrences belonging to repeated keys and to keys seen
// exactly once.
func (t Tally) Split() (xsums, ysums int) {
	for _, v := range t {
		switch {
		case v > 1:
			xsums += v
		case v == 1:
			ysums += v
		}
	}
	return xsums, ysums
}

// Ratio is 1 when every occurrence is repeated and 0 for an empty tally.
func (t Tally) Ratio() float64 {
	xsums, ysums := t.Split()
	if ysums > 0 {
		return float64(xsums) / float64(xsums+ysums)
	}
	if xsums > 0 {
		return 1.0
	}
	return 0.0
}

// Duplicated lists the repeated keys, most frequent first.
func (t Tally) Duplicated() []string {
	keys := make([]string, 0)
	for k, v := range t {
		if v > 1 {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		if t[a] != t[b] {
			return t[b] - t[a]
		}
		return cmp.Compare(a, b)
	})
	return keys
}
