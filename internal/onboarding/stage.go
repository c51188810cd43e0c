package onboarding

// Stage is the step of the goal-definition process the conversation is in.
type Stage int

const (
	StageClarifying    Stage = iota // operator asks clarifying questions
	StageSettingGoal                // goal-setting expert
	StageSplittingGoal              // goal-splitting expert
	StageDone
	StageError
)

// Stage tags sent by the onboarding service.
const (
	TagOperator          = "operator"
	TagGoalSettingExpert = "goal_setting_expert"
	TagGoalSplitting     = "goal_splitting_expert"
	TagDone              = "done"
	TagError             = "error"
)

var stageByTag = map[string]Stage{
	TagOperator:          StageClarifying,
	TagGoalSettingExpert: StageSettingGoal,
	TagGoalSplitting:     StageSplittingGoal,
	TagDone:              StageDone,
	TagError:             StageError,
}

// ParseStageTag maps a backend stage tag to a Stage. Unknown tags report
// false and must leave the current stage untouched.
func ParseStageTag(tag string) (Stage, bool) {
	s, ok := stageByTag[tag]
	return s, ok
}

func (s Stage) String() string {
	switch s {
	case StageClarifying:
		return "clarifying"
	case StageSettingGoal:
		return "settingGoal"
	case StageSplittingGoal:
		return "splittingGoal"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Title is the fixed header shown for the stage.
func (s Stage) Title() string {
	switch s {
	case StageClarifying:
		return "Tell me about your goal"
	case StageSettingGoal:
		return "Setting your goal"
	case StageSplittingGoal:
		return "Breaking it into steps"
	case StageDone:
		return "Your plan is ready"
	case StageError:
		return "Something went wrong"
	default:
		return ""
	}
}

// Progress is the fraction of the wizard completed at this stage.
func (s Stage) Progress() float64 {
	switch s {
	case StageClarifying:
		return 1.0 / 3.0
	case StageSettingGoal:
		return 2.0 / 3.0
	case StageSplittingGoal, StageDone:
		return 1
	default:
		return 0
	}
}
