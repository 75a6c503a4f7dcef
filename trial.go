// Package trialsink captures trial results of a multi-stage decision experiment, projects them
// into a flat CSV table and persists the table to a remote results service or a local destination.
package trialsink

import "slices"

// Outcome is the terminal result of a trial as reported by the game logic.
type Outcome string

// Action is the action a participant took at a stage.
type Action string

// Trial is one completed play-through of the task.
type Trial struct {
	ParticipantID     string         `json:"participant_number"`
	TrialID           int            `json:"trial_id"`
	StageCount        int            `json:"n_stages"`
	Outcome           Outcome        `json:"outcome"`
	WealthStart       float64        `json:"wealth_start"`
	WealthEnd         float64        `json:"wealth_end"`
	PerformanceReward float64        `json:"performance_reward"`
	TotalPayment      float64        `json:"total_payment"`
	MeanAccuracy      float64        `json:"mean_accuracy"`
	Questionnaire     *Questionnaire `json:"questionnaire,omitempty"`
	History           []Step         `json:"history"`
}

// Questionnaire is the optional post-trial questionnaire. Answers keep their native JSON type
// (number, string or bool) and are exported in order as Q1, Q2, ...
type Questionnaire struct {
	TotalScore float64 `json:"totalScore"`
	Answers    []any   `json:"answers,omitempty"`
}

// Probs holds the ground truth probabilities of a stage. Win and Loss are independent values;
// they are not required to sum to 1.
type Probs struct {
	Win  float64 `json:"win"`
	Loss float64 `json:"loss"`
}

// Step is one stage within a trial.
type Step struct {
	Stage            int     `json:"stage"`
	PRoll            int     `json:"p_roll"`
	HRoll            int     `json:"h_roll"`
	PSum             int     `json:"p_sum"`
	HSum             int     `json:"h_sum"`
	WealthAvailable  float64 `json:"wealth_available"`
	CurrentBet       float64 `json:"current_bet"`
	RemainingStages  int     `json:"remaining_stages"`
	GroundTruthProbs Probs   `json:"ground_truth_probs"`
	Entropy          float64 `json:"entropy"`
	ActionTaken      Action  `json:"action_taken"`
	BeliefReported   float64 `json:"belief_reported"`
	BetAfterAction   float64 `json:"bet_after_action"`
	BrierScore       float64 `json:"brier_score"`
	AccuracyScore    float64 `json:"accuracy_score"`
}

// Clone returns a deep copy of the trial. The copy shares no slices or pointers with x.
func (x Trial) Clone() Trial {
	out := x
	out.History = slices.Clone(x.History)
	if x.Questionnaire != nil {
		q := *x.Questionnaire
		q.Answers = slices.Clone(x.Questionnaire.Answers)
		out.Questionnaire = &q
	}
	return out
}

// answerCount returns the number of questionnaire answers carried by the trial.
func (x *Trial) answerCount() int {
	if x.Questionnaire == nil {
		return 0
	}
	return len(x.Questionnaire.Answers)
}
