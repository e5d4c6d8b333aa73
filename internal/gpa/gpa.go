package gpa

import (
	"strconv"
	"strings"

	"github.com/suseoaa/oaacore/internal/models"
)

// Result is a credit-weighted summary over a set of course grades.
type Result struct {
	GPA          float64 `json:"gpa"`
	AverageScore float64 `json:"average_score"`
	TotalCredits float64 `json:"total_credits"`
	Courses      int     `json:"courses"`
}

// letterScores maps the portal's non-numeric marks onto the hundred
// point scale the grade point formula works in. Pass-only marks count
// as a bare pass.
var letterScores = map[string]float64{
	"优":   95,
	"A":   95,
	"良":   85,
	"B":   85,
	"中":   75,
	"C":   75,
	"及格":  65,
	"D":   65,
	"不及格": 0,
	"F":   0,
	"合格":  60,
	"通过":  60,
	"免修":  60,
}

// ParseScore turns a portal score string into a numeric score. The
// second return is false for marks that carry no score at all, such as
// a deferred exam.
func ParseScore(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "缓考" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if v, ok := letterScores[s]; ok {
		return v, true
	}
	return 0, false
}

// Point converts a hundred point score to the 4.5 grade point scale:
// 60 is 1.0, every full 5 points above adds 0.5, 95 and up is 4.5,
// below 60 is 0.
func Point(score float64) float64 {
	switch {
	case score >= 95:
		return 4.5
	case score < 60:
		return 0
	default:
		return 1.0 + float64(int((score-60)/5))*0.5
	}
}

// Calculate computes the credit-weighted GPA and average score over
// grades. Retakes of the same course keep only the best attempt. When
// degreeKeys is non-nil, only courses whose number or name appears in
// it are counted.
func Calculate(grades []models.Grade, degreeKeys map[string]bool) Result {
	type attempt struct {
		score  float64
		credit float64
	}
	best := make(map[string]attempt)
	var order []string

	for _, g := range grades {
		score, ok := ParseScore(g.Score)
		if !ok {
			continue
		}
		if degreeKeys != nil && !degreeKeys[g.CourseID] && !degreeKeys[g.CourseName] {
			continue
		}
		credit, err := strconv.ParseFloat(strings.TrimSpace(g.Credit), 64)
		if err != nil || credit <= 0 {
			continue
		}

		key := g.CourseName
		if prev, seen := best[key]; seen {
			if score > prev.score {
				best[key] = attempt{score: score, credit: credit}
			}
			continue
		}
		best[key] = attempt{score: score, credit: credit}
		order = append(order, key)
	}

	var res Result
	var pointSum, scoreSum float64
	for _, key := range order {
		a := best[key]
		pointSum += Point(a.score) * a.credit
		scoreSum += a.score * a.credit
		res.TotalCredits += a.credit
		res.Courses++
	}
	if res.TotalCredits > 0 {
		res.GPA = pointSum / res.TotalCredits
		res.AverageScore = scoreSum / res.TotalCredits
	}
	return res
}

// DegreeKeys builds the lookup Calculate filters against from the
// cached teaching plan rows.
func DegreeKeys(plan []models.PlanCourse) map[string]bool {
	keys := make(map[string]bool, len(plan))
	for _, p := range plan {
		if p.IsDegree != 0 {
			keys[p.CourseKey] = true
		}
	}
	return keys
}
