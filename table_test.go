package trialsink_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/trialsink"
)

func TestToTableEmpty(t *testing.T) {
	p := trialsink.NewProjector()
	gt.Nil(t, p.ToTable(nil))
	gt.Nil(t, p.ToTable([]trialsink.Trial{}))
}

func TestToTableSingleTrialWithoutQuestionnaire(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 1, 2),
	})
	gt.NotNil(t, tbl)
	gt.Equal(t, tbl.NumRows(), 2)
	gt.Equal(t, tbl.Columns(), trialsink.FixedColumns())

	for row := range 2 {
		v, ok := tbl.Value(row, trialsink.ColumnQuestionnaire)
		gt.True(t, ok)
		gt.Equal(t, v, "")

		pid, ok := tbl.Value(row, trialsink.ColumnParticipant)
		gt.True(t, ok)
		gt.Equal(t, pid, "P1")
	}

	stage, _ := tbl.Value(1, trialsink.ColumnStage)
	gt.Equal(t, stage, "2")

	lines := strings.Split(tbl.String(), "\n")
	gt.A(t, lines).Length(3)
	gt.True(t, strings.HasSuffix(lines[1], `,""`))
	gt.False(t, strings.Contains(lines[0], "Q1"))
}

func TestToTableRowCount(t *testing.T) {
	testCases := []struct {
		name   string
		steps  []int
		expect int
	}{
		{name: "single trial", steps: []int{3}, expect: 3},
		{name: "multiple trials", steps: []int{1, 2, 3}, expect: 6},
		{name: "trial without steps", steps: []int{2, 0, 4}, expect: 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var trials []trialsink.Trial
			for i, n := range tc.steps {
				trials = append(trials, newTrial("P1", i+1, n))
			}

			tbl := trialsink.NewProjector().ToTable(trials)
			gt.Equal(t, tbl.NumRows(), tc.expect)

			lines := strings.Split(tbl.String(), "\n")
			gt.A(t, lines).Length(tc.expect + 1)
		})
	}
}

func TestToTableRowOrder(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 10, 2),
		newTrial("P1", 11, 2),
	})

	expect := []struct{ trial, stage string }{
		{"10", "1"}, {"10", "2"}, {"11", "1"}, {"11", "2"},
	}
	for i, e := range expect {
		trial, _ := tbl.Value(i, trialsink.ColumnTrialID)
		stage, _ := tbl.Value(i, trialsink.ColumnStage)
		gt.Equal(t, trial, e.trial)
		gt.Equal(t, stage, e.stage)
	}
}

func TestToTableColumnsFromFirstRow(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 1, 1, 1.0, 2.0, 3.0),
		newTrial("P1", 2, 2, 4.0),
		newTrial("P1", 3, 1, 5.0, 6.0, 7.0, 8.0, 9.0),
		newTrial("P1", 4, 1),
	})

	columns := tbl.Columns()
	gt.Equal(t, len(columns), len(trialsink.FixedColumns())+3)
	gt.Equal(t, columns[len(columns)-3:], []string{"Q1", "Q2", "Q3"})

	// shorter answer list leaves absent cells, nothing is shifted
	v, ok := tbl.Value(1, "Q1")
	gt.True(t, ok)
	gt.Equal(t, v, "4")
	_, ok = tbl.Value(1, "Q2")
	gt.False(t, ok)
	_, ok = tbl.Value(2, "Q3")
	gt.False(t, ok)

	// longer answer list is cut at the first row's count
	v, _ = tbl.Value(3, "Q3")
	gt.Equal(t, v, "7")
	_, ok = tbl.Value(3, "Q4")
	gt.False(t, ok)

	// trial without questionnaire
	_, ok = tbl.Value(4, "Q1")
	gt.False(t, ok)
	total, ok := tbl.Value(4, trialsink.ColumnQuestionnaire)
	gt.True(t, ok)
	gt.Equal(t, total, "")

	// every encoded row has the same number of fields
	records, err := csv.NewReader(strings.NewReader(tbl.String())).ReadAll()
	gt.NoError(t, err)
	for _, r := range records {
		gt.Equal(t, len(r), len(columns))
	}
}

func TestToTableFirstRowWithoutQuestionnaire(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 1, 1),
		newTrial("P1", 2, 1, 1.0, 2.0),
	})
	gt.Equal(t, tbl.Columns(), trialsink.FixedColumns())

	total, _ := tbl.Value(1, trialsink.ColumnQuestionnaire)
	gt.Equal(t, total, "2")
}

func TestToTableFirstRowSkipsEmptyTrials(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 1, 0, 1.0),
		newTrial("P1", 2, 1, 1.0, 2.0),
	})
	columns := tbl.Columns()
	gt.Equal(t, columns[len(columns)-1], "Q2")
}

func TestToTableColumnsFromAllRows(t *testing.T) {
	p := trialsink.NewProjector(trialsink.WithColumnPolicy(trialsink.ColumnsFromAllRows))
	tbl := p.ToTable([]trialsink.Trial{
		newTrial("P1", 1, 1, 1.0),
		newTrial("P1", 2, 1, 2.0, 3.0, 4.0),
		newTrial("P1", 3, 1),
	})

	columns := tbl.Columns()
	gt.Equal(t, columns[len(columns)-3:], []string{"Q1", "Q2", "Q3"})

	v, _ := tbl.Value(1, "Q3")
	gt.Equal(t, v, "4")
	_, ok := tbl.Value(0, "Q2")
	gt.False(t, ok)
	_, ok = tbl.Value(2, "Q1")
	gt.False(t, ok)
}

func TestToTableOnlyEmptyHistories(t *testing.T) {
	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{
		newTrial("P1", 1, 0, 1.0),
	})
	gt.NotNil(t, tbl)
	gt.Equal(t, tbl.NumRows(), 0)
	gt.Equal(t, tbl.String(), strings.Join(trialsink.FixedColumns(), ","))
}

func TestToTableIdempotent(t *testing.T) {
	log := trialsink.NewTrialLog()
	log.Append(newTrial("P1", 1, 2, 1.0, "x"))
	log.Append(newTrial("P1", 2, 3))

	p := trialsink.NewProjector()
	first := p.ToTable(log.All()).Bytes()
	second := p.ToTable(log.All()).Bytes()
	gt.True(t, bytes.Equal(first, second))
}

func TestTableEncode(t *testing.T) {
	trial := trialsink.Trial{
		ParticipantID:     "P1",
		TrialID:           7,
		StageCount:        1,
		Outcome:           "bust",
		WealthStart:       100,
		WealthEnd:         0,
		PerformanceReward: 0.5,
		TotalPayment:      2.5,
		MeanAccuracy:      0.8,
		Questionnaire: &trialsink.Questionnaire{
			TotalScore: 3,
			Answers:    []any{"a,b", `say "hi"`},
		},
		History: []trialsink.Step{
			{
				Stage:            1,
				PRoll:            4,
				HRoll:            6,
				PSum:             4,
				HSum:             6,
				WealthAvailable:  100,
				CurrentBet:       20,
				RemainingStages:  0,
				GroundTruthProbs: trialsink.Probs{Win: 0.4, Loss: 0.6},
				Entropy:          0.971,
				ActionTaken:      "bet",
				BeliefReported:   0.5,
				BetAfterAction:   40,
				BrierScore:       0.01,
				AccuracyScore:    0.9,
			},
		},
	}

	tbl := trialsink.NewProjector().ToTable([]trialsink.Trial{trial})

	expect := "participant_number,trial_id,n_stages,stage,outcome,wealth_start,wealth_end," +
		"p_roll,h_roll,p_sum,h_sum,wealth_available,current_bet,remaining_stages," +
		"win_prob,loss_prob,entropy,action_taken,belief_reported,bet_after_action," +
		"brier_score,accuracy_score,performance_reward,total_payment,mean_accuracy," +
		"Questionnaire_Total,Q1,Q2\n" +
		`"P1","7","1","1","bust","100","0","4","6","4","6","100","20","0",` +
		`"0.4","0.6","0.971","bet","0.5","40","0.01","0.9","0.5","2.5","0.8",` +
		`"3","a,b","say ""hi"""`

	gt.Equal(t, tbl.String(), expect)

	var buf bytes.Buffer
	gt.NoError(t, tbl.Encode(&buf))
	gt.Equal(t, buf.String(), expect)
}

func TestTableRoundTrip(t *testing.T) {
	trials := []trialsink.Trial{
		newTrial("P,1", 1, 2, "line\nbreak", 2.5, true),
		newTrial(`P"2`, 2, 1, "only"),
	}
	tbl := trialsink.NewProjector().ToTable(trials)

	records, err := csv.NewReader(strings.NewReader(tbl.String())).ReadAll()
	gt.NoError(t, err)
	gt.A(t, records).Length(tbl.NumRows() + 1)
	gt.Equal(t, records[0], tbl.Columns())

	for i, record := range records[1:] {
		for j, column := range tbl.Columns() {
			v, _ := tbl.Value(i, column)
			gt.Equal(t, record[j], v)
		}
	}
}

func TestToTableFromJSON(t *testing.T) {
	raw := `[{
		"participant_number": "P9",
		"trial_id": 1,
		"n_stages": 1,
		"outcome": "cash_out",
		"questionnaire": {"totalScore": 7, "answers": [3, "agree", 4]},
		"history": [{"stage": 1, "ground_truth_probs": {"win": 0.7, "loss": 0.7}}]
	}]`

	var trials []trialsink.Trial
	gt.NoError(t, json.Unmarshal([]byte(raw), &trials))

	tbl := trialsink.NewProjector().ToTable(trials)
	gt.Equal(t, tbl.NumRows(), 1)

	q1, _ := tbl.Value(0, "Q1")
	q2, _ := tbl.Value(0, "Q2")
	q3, _ := tbl.Value(0, "Q3")
	gt.Equal(t, q1, "3")
	gt.Equal(t, q2, "agree")
	gt.Equal(t, q3, "4")

	win, _ := tbl.Value(0, trialsink.ColumnWinProb)
	loss, _ := tbl.Value(0, trialsink.ColumnLossProb)
	gt.Equal(t, win, "0.7")
	gt.Equal(t, loss, "0.7")
}

func TestFormatValue(t *testing.T) {
	testCases := []struct {
		input  any
		expect string
	}{
		{input: "text", expect: "text"},
		{input: 3.0, expect: "3"},
		{input: 0.125, expect: "0.125"},
		{input: float32(0.5), expect: "0.5"},
		{input: 12, expect: "12"},
		{input: int64(-4), expect: "-4"},
		{input: true, expect: "true"},
		{input: json.Number("1e3"), expect: "1e3"},
	}

	for _, tc := range testCases {
		gt.Equal(t, trialsink.FormatValue(tc.input), tc.expect)
	}
}

func TestQuote(t *testing.T) {
	gt.Equal(t, trialsink.Quote(""), `""`)
	gt.Equal(t, trialsink.Quote("a"), `"a"`)
	gt.Equal(t, trialsink.Quote(`a"b`), `"a""b"`)
}

func TestColumnPolicyString(t *testing.T) {
	gt.Equal(t, trialsink.ColumnsFromFirstRow.String(), "first_row")
	gt.Equal(t, trialsink.ColumnsFromAllRows.String(), "all_rows")
	gt.Equal(t, trialsink.ColumnPolicy(2).String(), "ColumnPolicy(2)")
}

func TestToTableUnknownColumnPolicy(t *testing.T) {
	p := trialsink.NewProjector(trialsink.WithColumnPolicy(trialsink.ColumnPolicy(2)))
	tbl := p.ToTable([]trialsink.Trial{
		newTrial("P1", 1, 1, 1.0),
		newTrial("P1", 2, 1, 1.0, 2.0),
	})

	gt.NotNil(t, tbl)
	v, ok := tbl.Value(1, "Q2")
	gt.True(t, ok)
	gt.Equal(t, v, "2")
}
