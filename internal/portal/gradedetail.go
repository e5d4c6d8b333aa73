package portal

import (
	"regexp"
)

// GradeBreakdown is the per-component split of one course grade:
// regular coursework, lab work and the final exam, each with the
// weight the portal assigns it.
type GradeBreakdown struct {
	Regular         string
	RegularRatio    string
	Experiment      string
	ExperimentRatio string
	Final           string
	FinalRatio      string
}

// The detail page renders each component as "<label>(<ratio>%) ... <score>",
// markup varies between terms so this matches on text, not structure.
var breakdownPattern = regexp.MustCompile(`(平时|实验|期末)[^（(0-9]*[（(](\d+(?:\.\d+)?)%[)）][^0-9]*?(\d+(?:\.\d+)?)`)

// ParseGradeBreakdown extracts the component scores from the grade
// detail HTML. Components the page does not show stay empty.
func ParseGradeBreakdown(html string) GradeBreakdown {
	var b GradeBreakdown
	for _, m := range breakdownPattern.FindAllStringSubmatch(html, -1) {
		label, ratio, score := m[1], m[2], m[3]
		switch label {
		case "平时":
			b.Regular, b.RegularRatio = score, ratio
		case "实验":
			b.Experiment, b.ExperimentRatio = score, ratio
		case "期末":
			b.Final, b.FinalRatio = score, ratio
		}
	}
	return b
}

// ParseGradeDetail returns the raw component strings for storage, in
// the order they appear on the page.
func ParseGradeDetail(html string) []string {
	var items []string
	for _, m := range breakdownPattern.FindAllStringSubmatch(html, -1) {
		items = append(items, m[1]+"("+m[2]+"%):"+m[3])
	}
	return items
}
