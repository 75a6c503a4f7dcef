package trialsink_test

import (
	"github.com/m-mizutani/trialsink"
)

func newStep(stage int) trialsink.Step {
	return trialsink.Step{
		Stage:            stage,
		PRoll:            stage + 2,
		HRoll:            stage + 3,
		PSum:             (stage + 2) * stage,
		HSum:             (stage + 3) * stage,
		WealthAvailable:  100,
		CurrentBet:       10,
		RemainingStages:  3 - stage,
		GroundTruthProbs: trialsink.Probs{Win: 0.25, Loss: 0.5},
		Entropy:          1.0397,
		ActionTaken:      "hold",
		BeliefReported:   0.3,
		BetAfterAction:   12.5,
		BrierScore:       0.0025,
		AccuracyScore:    0.95,
	}
}

func newTrial(participant string, trialID, steps int, answers ...any) trialsink.Trial {
	t := trialsink.Trial{
		ParticipantID:     participant,
		TrialID:           trialID,
		StageCount:        steps,
		Outcome:           "cash_out",
		WealthStart:       100,
		WealthEnd:         112.5,
		PerformanceReward: 1.5,
		TotalPayment:      3,
		MeanAccuracy:      0.95,
	}
	for i := 1; i <= steps; i++ {
		t.History = append(t.History, newStep(i))
	}
	if answers != nil {
		t.Questionnaire = &trialsink.Questionnaire{
			TotalScore: float64(len(answers)),
			Answers:    answers,
		}
	}
	return t
}
