package grading

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core"
)

func fPtr(f float64) *float64 { return &f }

func TestDefaultActivities(t *testing.T) {
	acts := DefaultActivities()
	names := make([]string, 0, len(acts))
	for _, act := range acts {
		names = append(names, act.Name)
		assert.Equal(t, float64(DefaultMaxScore), act.MaxScore)
	}
	assert.Equal(t, []string{"WW1", "WW2", "WW3", "WW4", "WW5", "PT1", "PT2", "PT3", "PT4", "QA1"}, names)
}

func TestMergeActivities(t *testing.T) {
	merged := MergeActivities([]Activity{
		{Type: Written, Name: "WW2", MaxScore: 20},
		{Type: Performance, Name: "Project", MaxScore: 50},
		{Type: Written, Name: "WW6", MaxScore: 10},
	})

	assert.Len(t, merged, 12)
	ww2, ok := FindActivity(merged, "ww2")
	assert.True(t, ok)
	assert.Equal(t, 20.0, ww2.MaxScore)
	assert.Equal(t, Activity{Type: Performance, Name: "Project", MaxScore: 50}, merged[10])
	assert.Equal(t, Activity{Type: Written, Name: "WW6", MaxScore: 10}, merged[11])
	assert.Equal(t, 6, CountCategory(merged, Written))
	assert.Equal(t, 5, CountCategory(merged, Performance))
}

func TestCategoryPercent(t *testing.T) {
	acts := []Activity{
		{Type: Written, Name: "WW1", MaxScore: 20},
		{Type: Written, Name: "WW2", MaxScore: 30},
		{Type: Quarterly, Name: "QA1", MaxScore: 50},
	}
	scores := map[string]*float64{"WW1": fPtr(15), "WW2": nil, "QA1": fPtr(40)}

	assert.InDelta(t, 30.0, CategoryPercent(acts, Written, scores), 1e-9) // 15/50
	assert.InDelta(t, 80.0, CategoryPercent(acts, Quarterly, scores), 1e-9)
	assert.Equal(t, 0.0, CategoryPercent(acts, Performance, scores)) // no max
}

func TestFinalGrade(t *testing.T) {
	w := Weights{WrittenWork: 30, PerformanceTask: 50, QuarterlyAssessment: 20}
	assert.InDelta(t, 87.0, FinalGrade(80, 90, 90, w), 1e-9)
	assert.InDelta(t, 100.0, FinalGrade(100, 100, 100, w), 1e-9)
	assert.Equal(t, 85.67, Round(85.666, 2))
}

func TestRemarks(t *testing.T) {
	tests := []struct {
		grade float64
		want  string
	}{
		{100, RemarkHighestHonors},
		{98, RemarkHighestHonors},
		{97.99, RemarkHighHonors},
		{95, RemarkHighHonors},
		{90, RemarkHonors},
		{89.99, RemarkPassed},
		{75, RemarkPassed},
		{74.99, RemarkFailed},
		{0, RemarkFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Remarks(tt.grade), "grade %v", tt.grade)
	}
}

func TestAverage(t *testing.T) {
	assert.Nil(t, Average(nil, nil))
	assert.Equal(t, 88.5, *Average(fPtr(88), nil, fPtr(89), nil))
	assert.Equal(t, 86.7, *Average(fPtr(85), fPtr(87), fPtr(88)))
}

func TestWeights_Validate(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	tests := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{name: "sums to 100", w: Weights{WrittenWork: 30, PerformanceTask: 50, QuarterlyAssessment: 20}},
		{name: "decimals sum to 100", w: Weights{WrittenWork: 33.3, PerformanceTask: 33.3, QuarterlyAssessment: 33.4}},
		{name: "under 100", w: Weights{WrittenWork: 30, PerformanceTask: 50, QuarterlyAssessment: 10}, wantErr: true},
		{name: "over 100", w: Weights{WrittenWork: 40, PerformanceTask: 50, QuarterlyAssessment: 20}, wantErr: true},
		{name: "negative", w: Weights{WrittenWork: -10, PerformanceTask: 90, QuarterlyAssessment: 20}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	stats := computeStats([]RecordRow{{FinalGrade: 80}, {FinalGrade: 70}, {FinalGrade: 95.5}})
	assert.Equal(t, ClassStats{Average: 81.83, Highest: 95.5, Lowest: 70, PassingRate: 66.7}, stats)
	assert.Equal(t, ClassStats{}, computeStats(nil))
}
