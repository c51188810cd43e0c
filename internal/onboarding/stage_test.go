package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStageTag(t *testing.T) {
	tests := []struct {
		tag   string
		want  Stage
		known bool
	}{
		{"operator", StageClarifying, true},
		{"goal_setting_expert", StageSettingGoal, true},
		{"goal_splitting_expert", StageSplittingGoal, true},
		{"done", StageDone, true},
		{"error", StageError, true},
		{"", 0, false},
		{"Operator", 0, false},
		{"fortune_teller", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ParseStageTag(tt.tag)
			assert.Equal(t, tt.known, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStageProgress(t *testing.T) {
	assert.InDelta(t, 1.0/3.0, StageClarifying.Progress(), 1e-9)
	assert.InDelta(t, 2.0/3.0, StageSettingGoal.Progress(), 1e-9)
	assert.Equal(t, 1.0, StageSplittingGoal.Progress())
	assert.Equal(t, 1.0, StageDone.Progress())
	assert.Equal(t, 0.0, StageError.Progress())
}

func TestStageTitlesAreDistinct(t *testing.T) {
	seen := map[string]Stage{}
	for _, s := range []Stage{StageClarifying, StageSettingGoal, StageSplittingGoal, StageDone, StageError} {
		title := s.Title()
		assert.NotEmpty(t, title, s.String())
		_, dup := seen[title]
		assert.False(t, dup, "duplicate title %q", title)
		seen[title] = s
	}
}
