package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func maskOf(weeks ...int) uint64 {
	var mask uint64
	for _, w := range weeks {
		mask |= 1 << (w - 1)
	}
	return mask
}

func TestParseWeeks(t *testing.T) {
	testCases := []struct {
		name string
		desc string
		want uint64
	}{
		{
			name: "plain range",
			desc: "1-16周",
			want: maskOf(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16),
		},
		{
			name: "odd weeks with suffix notation",
			desc: "1-16周(单)",
			want: maskOf(1, 3, 5, 7, 9, 11, 13, 15),
		},
		{
			name: "even weeks with bare notation",
			desc: "2-16双",
			want: maskOf(2, 4, 6, 8, 10, 12, 14, 16),
		},
		{
			name: "mixed singles and odd range",
			desc: "3,5,7-9单",
			want: maskOf(3, 5, 7, 9),
		},
		{
			name: "two ranges with parity on second",
			desc: "1-8周,9-16周(单)",
			want: maskOf(1, 2, 3, 4, 5, 6, 7, 8, 9, 11, 13, 15),
		},
		{
			name: "fullwidth comma separator",
			desc: "1-4周，6-8周",
			want: maskOf(1, 2, 3, 4, 6, 7, 8),
		},
		{
			name: "semicolon and enumeration comma",
			desc: "1；3、5",
			want: maskOf(1, 3, 5),
		},
		{
			name: "whitespace as separator",
			desc: "2周 4周\n6周",
			want: maskOf(2, 4, 6),
		},
		{
			name: "reversed range normalized",
			desc: "8-3周",
			want: maskOf(3, 4, 5, 6, 7, 8),
		},
		{
			name: "single week",
			desc: "12周",
			want: maskOf(12),
		},
		{
			name: "weeks above bound dropped",
			desc: "60-70周",
			want: maskOf(60, 61, 62, 63),
		},
		{
			name: "zero week dropped",
			desc: "0-2周",
			want: maskOf(1, 2),
		},
		{
			name: "empty descriptor",
			desc: "",
			want: 0,
		},
		{
			name: "garbage segment contributes nothing",
			desc: "abc,5周",
			want: maskOf(5),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseWeeks(tc.desc))
		})
	}
}

func TestParseWeeks_UnionIdempotent(t *testing.T) {
	descs := []string{"1-16周", "3,5,7-9单", "1-8周,9-16周(单)", "2-16双"}
	for _, desc := range descs {
		once := ParseWeeks(desc)
		doubled := ParseWeeks(desc + "," + desc)
		assert.Equal(t, once, doubled, "self-union should not change mask for %q", desc)
	}

	a := ParseWeeks("1-8周")
	b := ParseWeeks("9-16周")
	assert.Equal(t, a|b, ParseWeeks("1-8周,9-16周"))
}

func TestFormatWeeks(t *testing.T) {
	testCases := []struct {
		name string
		mask uint64
		want string
	}{
		{"empty", 0, ""},
		{"single", maskOf(4), "4周"},
		{"contiguous", maskOf(1, 2, 3, 4, 5), "1-5周"},
		{"odd run", maskOf(3, 5, 7, 9), "3-9周(单)"},
		{"even run", maskOf(2, 4, 6), "2-6周(双)"},
		{"mixed", maskOf(1, 2, 3, 8), "1-3周,8周"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatWeeks(tc.mask))
		})
	}
}

func TestFormatWeeks_RoundTrip(t *testing.T) {
	masks := []uint64{maskOf(1, 2, 3), maskOf(3, 5, 7, 9), maskOf(1, 2, 3, 10, 12, 14), maskOf(63)}
	for _, mask := range masks {
		assert.Equal(t, mask, ParseWeeks(FormatWeeks(mask)))
	}
}
