package trialsink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Column names of the fixed part of the exported table. Downstream analysis depends on these
// names and their order.
const (
	ColumnParticipant       = "participant_number"
	ColumnTrialID           = "trial_id"
	ColumnStageCount        = "n_stages"
	ColumnStage             = "stage"
	ColumnOutcome           = "outcome"
	ColumnWealthStart       = "wealth_start"
	ColumnWealthEnd         = "wealth_end"
	ColumnPRoll             = "p_roll"
	ColumnHRoll             = "h_roll"
	ColumnPSum              = "p_sum"
	ColumnHSum              = "h_sum"
	ColumnWealthAvailable   = "wealth_available"
	ColumnCurrentBet        = "current_bet"
	ColumnRemainingStages   = "remaining_stages"
	ColumnWinProb           = "win_prob"
	ColumnLossProb          = "loss_prob"
	ColumnEntropy           = "entropy"
	ColumnActionTaken       = "action_taken"
	ColumnBeliefReported    = "belief_reported"
	ColumnBetAfterAction    = "bet_after_action"
	ColumnBrierScore        = "brier_score"
	ColumnAccuracyScore     = "accuracy_score"
	ColumnPerformanceReward = "performance_reward"
	ColumnTotalPayment      = "total_payment"
	ColumnMeanAccuracy      = "mean_accuracy"
	ColumnQuestionnaire     = "Questionnaire_Total"
)

var fixedColumns = []string{
	ColumnParticipant,
	ColumnTrialID,
	ColumnStageCount,
	ColumnStage,
	ColumnOutcome,
	ColumnWealthStart,
	ColumnWealthEnd,
	ColumnPRoll,
	ColumnHRoll,
	ColumnPSum,
	ColumnHSum,
	ColumnWealthAvailable,
	ColumnCurrentBet,
	ColumnRemainingStages,
	ColumnWinProb,
	ColumnLossProb,
	ColumnEntropy,
	ColumnActionTaken,
	ColumnBeliefReported,
	ColumnBetAfterAction,
	ColumnBrierScore,
	ColumnAccuracyScore,
	ColumnPerformanceReward,
	ColumnTotalPayment,
	ColumnMeanAccuracy,
	ColumnQuestionnaire,
}

// FixedColumns returns the column names that every table starts with, in order.
func FixedColumns() []string {
	return slices.Clone(fixedColumns)
}

// AnswerColumn returns the column name of the questionnaire answer at the 0-based index i.
func AnswerColumn(i int) string {
	return "Q" + strconv.Itoa(i+1)
}

// ColumnPolicy decides how many questionnaire answer columns a table has.
type ColumnPolicy int

const (
	// ColumnsFromFirstRow fixes the answer columns by the trial that produces the first row.
	// Answers of later trials beyond that count are not exported. This is the historical
	// export format.
	ColumnsFromFirstRow ColumnPolicy = iota

	// ColumnsFromAllRows uses the largest answer count over all rows, so no answer is lost.
	ColumnsFromAllRows
)

// String returns the string representation of the column policy.
func (x ColumnPolicy) String() string {
	switch x {
	case ColumnsFromFirstRow:
		return "first_row"
	case ColumnsFromAllRows:
		return "all_rows"
	default:
		return fmt.Sprintf("ColumnPolicy(%d)", int(x))
	}
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithColumnPolicy sets the column policy. Default: ColumnsFromFirstRow.
func WithColumnPolicy(policy ColumnPolicy) ProjectorOption {
	return func(p *Projector) {
		p.policy = policy
	}
}

// WithProjectorLogger sets the logger that receives warnings about dropped answers.
func WithProjectorLogger(logger *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		p.logger = logger
	}
}

// Projector flattens trials into a Table with one row per step.
type Projector struct {
	policy ColumnPolicy
	logger *slog.Logger
}

// NewProjector creates a Projector.
func NewProjector(opts ...ProjectorOption) *Projector {
	p := &Projector{
		policy: ColumnsFromFirstRow,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ToTable projects trials into a table. Rows follow the trial order and, within a trial, the
// step order; trial level fields are repeated on every row of the trial.
// It returns nil when trials is empty, meaning there is nothing to export.
func (x *Projector) ToTable(trials []Trial) *Table {
	if len(trials) == 0 {
		return nil
	}

	answers := x.answerColumns(trials)
	columns := make([]string, 0, len(fixedColumns)+answers)
	columns = append(columns, fixedColumns...)
	for i := range answers {
		columns = append(columns, AnswerColumn(i))
	}

	tbl := &Table{columns: columns}
	for _, trial := range trials {
		if n := trial.answerCount(); n > answers && len(trial.History) > 0 {
			x.logger.Warn("questionnaire answers exceed table columns, extra answers are not exported",
				slog.Int("trial_id", trial.TrialID),
				slog.Int("answers", n),
				slog.Int("columns", answers),
				slog.String("policy", x.policy.String()),
			)
		}

		for _, step := range trial.History {
			row := make([]cell, 0, len(columns))
			row = append(row, trialStepCells(&trial, &step)...)
			for i := range answers {
				row = append(row, answerCell(&trial, i))
			}
			tbl.rows = append(tbl.rows, row)
		}
	}

	return tbl
}

func (x *Projector) answerColumns(trials []Trial) int {
	var n int
	for _, t := range trials {
		if len(t.History) == 0 {
			continue
		}
		if x.policy == ColumnsFromFirstRow {
			return t.answerCount()
		}
		n = max(n, t.answerCount())
	}
	return n
}

func trialStepCells(t *Trial, s *Step) []cell {
	total := text("")
	if t.Questionnaire != nil {
		total = text(formatFloat(t.Questionnaire.TotalScore))
	}

	return []cell{
		text(t.ParticipantID),
		text(strconv.Itoa(t.TrialID)),
		text(strconv.Itoa(t.StageCount)),
		text(strconv.Itoa(s.Stage)),
		text(string(t.Outcome)),
		text(formatFloat(t.WealthStart)),
		text(formatFloat(t.WealthEnd)),
		text(strconv.Itoa(s.PRoll)),
		text(strconv.Itoa(s.HRoll)),
		text(strconv.Itoa(s.PSum)),
		text(strconv.Itoa(s.HSum)),
		text(formatFloat(s.WealthAvailable)),
		text(formatFloat(s.CurrentBet)),
		text(strconv.Itoa(s.RemainingStages)),
		text(formatFloat(s.GroundTruthProbs.Win)),
		text(formatFloat(s.GroundTruthProbs.Loss)),
		text(formatFloat(s.Entropy)),
		text(string(s.ActionTaken)),
		text(formatFloat(s.BeliefReported)),
		text(formatFloat(s.BetAfterAction)),
		text(formatFloat(s.BrierScore)),
		text(formatFloat(s.AccuracyScore)),
		text(formatFloat(t.PerformanceReward)),
		text(formatFloat(t.TotalPayment)),
		text(formatFloat(t.MeanAccuracy)),
		total,
	}
}

func answerCell(t *Trial, i int) cell {
	if t.Questionnaire == nil || i >= len(t.Questionnaire.Answers) {
		return cell{}
	}
	v := t.Questionnaire.Answers[i]
	if v == nil {
		return cell{}
	}
	return text(formatValue(v))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return formatFloat(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// cell is a single table value. An absent cell has no value at all and is exported as an
// empty unquoted field, which differs from a present empty string.
type cell struct {
	value   string
	present bool
}

func text(s string) cell {
	return cell{value: s, present: true}
}

// Table is the flattened, header-plus-rows representation of a trial log.
type Table struct {
	columns []string
	rows    [][]cell
}

// Columns returns the column names in export order.
func (x *Table) Columns() []string {
	return slices.Clone(x.columns)
}

// NumRows returns the number of data rows, excluding the header.
func (x *Table) NumRows() int {
	return len(x.rows)
}

// Value returns the value at the given row and column. ok is false when the column does not
// exist, the row is out of range or the cell is absent.
func (x *Table) Value(row int, column string) (value string, ok bool) {
	if row < 0 || row >= len(x.rows) {
		return "", false
	}
	idx := slices.Index(x.columns, column)
	if idx < 0 {
		return "", false
	}
	c := x.rows[row][idx]
	return c.value, c.present
}

// Encode writes the table as CSV: a header line of bare column names followed by one line per
// row. Every present cell is double-quoted with embedded quotes doubled; absent cells are empty.
// Lines are separated by "\n" and there is no trailing newline.
func (x *Table) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(x.columns, ",")); err != nil {
		return goerr.Wrap(err, "failed to write table header")
	}

	for i, row := range x.rows {
		if err := bw.WriteByte('\n'); err != nil {
			return goerr.Wrap(err, "failed to write table row", goerr.V("row", i))
		}
		for j, c := range row {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return goerr.Wrap(err, "failed to write table row", goerr.V("row", i))
				}
			}
			if !c.present {
				continue
			}
			if _, err := bw.WriteString(quote(c.value)); err != nil {
				return goerr.Wrap(err, "failed to write table row", goerr.V("row", i))
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush table")
	}
	return nil
}

// Bytes returns the encoded CSV.
func (x *Table) Bytes() []byte {
	var buf bytes.Buffer
	// bytes.Buffer never fails on write
	_ = x.Encode(&buf)
	return buf.Bytes()
}

// String returns the encoded CSV.
func (x *Table) String() string {
	return string(x.Bytes())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
