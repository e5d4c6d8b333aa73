package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxWeek bounds the week mask. Bit k-1 of a mask means week k.
const MaxWeek = 63

var (
	weekSeparators = strings.NewReplacer(
		"，", ",",
		"；", ",",
		";", ",",
		"、", ",",
		"\n", ",",
	)
	spaceRun   = regexp.MustCompile(`\s+`)
	commaRun   = regexp.MustCompile(`,+`)
	nonWeekRun = regexp.MustCompile(`[^0-9-]`)
)

// ParseWeeks turns a week descriptor like "1-8周,9-16周(单)" or "3,5,7-9单"
// into a bitmask. It accepts every separator and parity notation the
// portal has been seen to emit and never fails: unparseable segments
// contribute nothing. Parsing is a union over comma-separated segments,
// so parsing the same descriptor twice or concatenating a descriptor
// with itself yields the same mask.
func ParseWeeks(desc string) uint64 {
	if strings.TrimSpace(desc) == "" {
		return 0
	}

	normalized := weekSeparators.Replace(desc)
	normalized = spaceRun.ReplaceAllString(normalized, ",")
	normalized = commaRun.ReplaceAllString(normalized, ",")

	var mask uint64
	for _, part := range strings.Split(normalized, ",") {
		if part == "" {
			continue
		}
		odd := strings.Contains(part, "单")
		even := strings.Contains(part, "双")

		clean := nonWeekRun.ReplaceAllString(part, "")
		if clean == "" {
			continue
		}

		if strings.Contains(clean, "-") {
			bounds := strings.SplitN(clean, "-", 2)
			start, err1 := strconv.Atoi(bounds[0])
			end, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				continue
			}
			if start > end {
				start, end = end, start
			}
			for w := start; w <= end; w++ {
				if includeWeek(w, odd, even) {
					mask |= 1 << (w - 1)
				}
			}
			continue
		}

		w, err := strconv.Atoi(clean)
		if err != nil {
			continue
		}
		if includeWeek(w, odd, even) {
			mask |= 1 << (w - 1)
		}
	}
	return mask
}

func includeWeek(week int, odd, even bool) bool {
	if week < 1 || week > MaxWeek {
		return false
	}
	if odd && !even && week%2 == 0 {
		return false
	}
	if even && !odd && week%2 != 0 {
		return false
	}
	return true
}

// Weeks expands a mask back into the week numbers it covers, ascending.
func Weeks(mask uint64) []int {
	var weeks []int
	for w := 1; w <= MaxWeek; w++ {
		if mask&(1<<(w-1)) != 0 {
			weeks = append(weeks, w)
		}
	}
	return weeks
}

// FormatWeeks renders a mask as a compact descriptor, the inverse of
// ParseWeeks for typical inputs. Runs of consecutive weeks become
// ranges, runs with stride two get a parity suffix.
func FormatWeeks(mask uint64) string {
	weeks := Weeks(mask)
	if len(weeks) == 0 {
		return ""
	}

	var parts []string
	for i := 0; i < len(weeks); {
		// longest run with constant step 1 or 2 starting here
		step := 0
		j := i + 1
		if j < len(weeks) {
			d := weeks[j] - weeks[i]
			if d == 1 || d == 2 {
				step = d
				for j+1 < len(weeks) && weeks[j+1]-weeks[j] == step {
					j++
				}
			}
		}

		switch {
		case step == 0 || j == i+1 && step == 2:
			parts = append(parts, strconv.Itoa(weeks[i])+"周")
			i++
		case step == 1:
			parts = append(parts, strconv.Itoa(weeks[i])+"-"+strconv.Itoa(weeks[j])+"周")
			i = j + 1
		default:
			suffix := "(双)"
			if weeks[i]%2 == 1 {
				suffix = "(单)"
			}
			parts = append(parts, strconv.Itoa(weeks[i])+"-"+strconv.Itoa(weeks[j])+"周"+suffix)
			i = j + 1
		}
	}
	return strings.Join(parts, ",")
}
