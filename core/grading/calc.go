package grading

import (
	"math"
	"strconv"
	"strings"
)

// Activity categories
const (
	Written     = "written"
	Performance = "performance"
	Quarterly   = "quarterly"
)

// Categories in display order.
var Categories = []string{Written, Performance, Quarterly}

var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

const DefaultMaxScore = 100

// Remarks
const (
	RemarkHighestHonors = "With Highest Honors"
	RemarkHighHonors    = "With High Honors"
	RemarkHonors        = "With Honors"
	RemarkPassed        = "Passed"
	RemarkFailed        = "Failed"

	PassingGrade = 75
)

var (
	categoryPrefixes = map[string]string{Written: "WW", Performance: "PT", Quarterly: "QA"}
	defaultCounts    = map[string]int{Written: 5, Performance: 4, Quarterly: 1}
)

func IsCategory(cat string) bool {
	_, ok := categoryPrefixes[cat]
	return ok
}

func IsQuarter(q string) bool {
	for _, quarter := range Quarters {
		if quarter == q {
			return true
		}
	}
	return false
}

type Activity struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	MaxScore float64 `json:"max_score"`
}

// DefaultActivities returns WW1-WW5, PT1-PT4 and QA1, each scored out of DefaultMaxScore.
func DefaultActivities() []Activity {
	activities := make([]Activity, 0, 10)
	for _, cat := range Categories {
		for i := 1; i <= defaultCounts[cat]; i++ {
			activities = append(activities, Activity{Type: cat, Name: ActivityName(cat, i), MaxScore: DefaultMaxScore})
		}
	}
	return activities
}

// ActivityName returns the automatic name of the n-th activity of a category, e.g. WW3.
func ActivityName(cat string, n int) string {
	return categoryPrefixes[cat] + strconv.Itoa(n)
}

// MergeActivities merges the stored activities into the defaults: a stored max score overrides the default one,
// custom activities are appended in the order they were first seen.
func MergeActivities(stored []Activity) []Activity {
	merged := DefaultActivities()
	index := make(map[string]int, len(merged)+len(stored))
	for i, act := range merged {
		index[activityKey(act.Type, act.Name)] = i
	}
	for _, act := range stored {
		key := activityKey(act.Type, act.Name)
		if i, ok := index[key]; ok {
			merged[i].MaxScore = act.MaxScore
			continue
		}
		index[key] = len(merged)
		merged = append(merged, act)
	}
	return merged
}

// FindActivity looks an activity up by name (case-insensitive).
func FindActivity(activities []Activity, name string) (Activity, bool) {
	for _, act := range activities {
		if strings.EqualFold(act.Name, name) {
			return act, true
		}
	}
	return Activity{}, false
}

func CountCategory(activities []Activity, cat string) int {
	var n int
	for _, act := range activities {
		if act.Type == cat {
			n++
		}
	}
	return n
}

// CategoryPercent returns Σscore / Σmax × 100 over the activities of a category. Missing scores count as 0.
func CategoryPercent(activities []Activity, cat string, scores map[string]*float64) float64 {
	var total, max float64
	for _, act := range activities {
		if act.Type != cat {
			continue
		}
		max += act.MaxScore
		if s := scores[act.Name]; s != nil {
			total += *s
		}
	}
	if max == 0 {
		return 0
	}
	return total / max * 100
}

// FinalGrade weighs the category percentages with the school's weights (in percents).
func FinalGrade(ww, pt, qa float64, w Weights) float64 {
	return ww*w.WrittenWork/100 + pt*w.PerformanceTask/100 + qa*w.QuarterlyAssessment/100
}

func Remarks(grade float64) string {
	switch {
	case grade >= 98:
		return RemarkHighestHonors
	case grade >= 95:
		return RemarkHighHonors
	case grade >= 90:
		return RemarkHonors
	case grade >= PassingGrade:
		return RemarkPassed
	default:
		return RemarkFailed
	}
}

func Round(val float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(val*p) / p
}

// Average returns the mean of the available values rounded to 1 decimal, nil when none is available.
func Average(vals ...*float64) *float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := Round(sum/float64(n), 1)
	return &avg
}

func activityKey(cat, name string) string {
	return cat + ":" + strings.ToLower(name)
}
