package main_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/trialsink"
	main "github.com/m-mizutani/trialsink/cmd/trialsink"
	"github.com/m-mizutani/trialsink/delivery"
	"github.com/m-mizutani/trialsink/internal/resultserver"
)

const trialsJSONL = `{"participant_number":"P1","trial_id":1,"n_stages":2,"outcome":"cash_out","wealth_start":10,"wealth_end":12,"performance_reward":1,"total_payment":3,"mean_accuracy":0.5,"questionnaire":{"totalScore":4,"answers":[1,"b"]},"history":[{"stage":1,"ground_truth_probs":{"win":0.5,"loss":0.25},"action_taken":"hold"},{"stage":2,"ground_truth_probs":{"win":0.5,"loss":0.25},"action_taken":"roll"}]}
{"participant_number":"P1","trial_id":2,"n_stages":1,"outcome":"bust","history":[{"stage":1,"ground_truth_probs":{"win":0.1,"loss":0.9},"action_taken":"roll"}]}
`

func writeTrials(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trials.jsonl")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := main.NewApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"trialsink"}, args...))
	return out.String(), err
}

func readDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	gt.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTableCommand(t *testing.T) {
	path := writeTrials(t, trialsJSONL)

	out, err := runApp(t, "table", "--trials", path)
	gt.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	gt.A(t, lines).Length(4)
	gt.True(t, strings.HasPrefix(lines[0], trialsink.ColumnParticipant+","))
	gt.True(t, strings.HasSuffix(lines[0], ",Q1,Q2"))
	gt.True(t, strings.HasPrefix(lines[1], `"P1","1","2","1","cash_out"`))
	gt.True(t, strings.HasPrefix(lines[3], `"P1","2","1","1","bust"`))
}

func TestTableCommandInvalidTrials(t *testing.T) {
	path := writeTrials(t, `{"trial_id":1,"n_stages":0,"outcome":"x","history":[]}`)
	_, err := runApp(t, "table", "--trials", path)
	gt.Error(t, err)
}

func TestTableCommandUnknownColumns(t *testing.T) {
	path := writeTrials(t, trialsJSONL)
	_, err := runApp(t, "table", "--trials", path, "--columns", "everything")
	gt.Error(t, err)
}

func TestSaveCommandRemote(t *testing.T) {
	remoteDir := t.TempDir()
	srv := resultserver.New(resultserver.WithDeliverer(delivery.NewFile(remoteDir)))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	localDir := filepath.Join(t.TempDir(), "local")
	out, err := runApp(t, "save",
		"--trials", writeTrials(t, trialsJSONL),
		"--participant", "P1",
		"--project-id", "507152",
		"--origin", "https://run.pavlovia.org/lab/task/",
		"--base-url", ts.URL+resultserver.APIPrefix,
		"--completion-url", "https://example.com/done",
		"--dir", localDir,
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("saved 3 rows as PARTICIPANT_P1_")
	gt.S(t, out).Contains("(remote)")
	gt.S(t, out).Contains("completion: https://example.com/done")

	names := readDir(t, remoteDir)
	gt.A(t, names).Length(1)
	gt.True(t, strings.HasPrefix(names[0], "PARTICIPANT_P1_"))
	gt.A(t, readDir(t, localDir)).Length(0)
}

func TestSaveCommandNotHosted(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "save",
		"--trials", writeTrials(t, trialsJSONL),
		"--participant", "P1",
		"--project-id", "507152",
		"--origin", "http://localhost:8080/",
		"--dir", dir,
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("(local)")

	names := readDir(t, dir)
	gt.A(t, names).Length(1)
	gt.True(t, strings.HasPrefix(names[0], "experiment_data_P1_"))

	data := gt.R1(os.ReadFile(filepath.Join(dir, names[0]))).NoError(t)
	table, err := runApp(t, "table", "--trials", writeTrials(t, trialsJSONL))
	gt.NoError(t, err)
	gt.Equal(t, string(data)+"\n", table)
}

func TestSaveCommandWithoutProjectID(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"token":"tok"}`))
	}))
	defer ts.Close()

	dir := t.TempDir()
	out, err := runApp(t, "save",
		"--trials", writeTrials(t, trialsJSONL),
		"--participant", "P1",
		"--origin", "https://run.pavlovia.org/lab/task/",
		"--base-url", ts.URL,
		"--dir", dir,
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("(local)")
	gt.Equal(t, requests.Load(), int32(0))

	names := readDir(t, dir)
	gt.A(t, names).Length(1)
	gt.True(t, strings.HasPrefix(names[0], "experiment_data_P1_"))
}

func TestSaveCommandParticipantWithSeparator(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "save",
		"--trials", writeTrials(t, trialsJSONL),
		"--participant", "lab/01",
		"--dir", dir,
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("saved 3 rows as experiment_data_lab_01_")

	names := readDir(t, dir)
	gt.A(t, names).Length(1)
	gt.True(t, strings.HasPrefix(names[0], "experiment_data_lab_01_"))
}

func TestSaveCommandFallsBackToSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	out, err := runApp(t, "save",
		"--trials", writeTrials(t, trialsJSONL),
		"--sqlite", dbPath,
	)
	gt.NoError(t, err)
	gt.S(t, out).Contains("experiment_data_unknown_")

	listed, err := runApp(t, "list", "--sqlite", dbPath)
	gt.NoError(t, err)
	gt.S(t, listed).Contains("experiment_data_unknown_")
}

func TestSaveCommandEmpty(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "save", "--trials", writeTrials(t, "[]"), "--dir", dir)
	gt.NoError(t, err)
	gt.S(t, out).Contains("no trials to save")
	gt.A(t, readDir(t, dir)).Length(0)
}

func TestSaveCommandWithConfigFile(t *testing.T) {
	exportDir := filepath.Join(t.TempDir(), "exports")
	cfgPath := filepath.Join(t.TempDir(), "trialsink.hcl")
	gt.NoError(t, os.WriteFile(cfgPath, []byte(`
completion_url = "https://example.com/from-config"

export {
  dir = "`+filepath.ToSlash(exportDir)+`"
}
`), 0600))

	out, err := runApp(t, "--config", cfgPath, "save", "--trials", writeTrials(t, trialsJSONL))
	gt.NoError(t, err)
	gt.S(t, out).Contains("completion: https://example.com/from-config")
	gt.A(t, readDir(t, exportDir)).Length(1)
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	local := delivery.NewFile(dir)
	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		gt.NoError(t, local.Deliver(context.Background(), name, trialsink.ContentTypeCSV, []byte("x")))
	}

	out, err := runApp(t, "list", "--dir", dir, "--page-size", "2")
	gt.NoError(t, err)
	gt.S(t, out).Contains("a.csv")
	gt.S(t, out).Contains("b.csv")
	gt.S(t, out).Contains("next page token: ")
	gt.False(t, strings.Contains(out, "c.csv"))
}

func TestListCommandRequiresOneSource(t *testing.T) {
	_, err := runApp(t, "list")
	gt.Error(t, err)

	_, err = runApp(t, "list", "--dir", t.TempDir(), "--sqlite", filepath.Join(t.TempDir(), "x.db"))
	gt.Error(t, err)
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	gt.NoError(t, os.WriteFile(path, []byte(`
project_id     = "507152"
completion_url = "https://example.com/done"
timeout        = "5s"
columns        = "all_rows"

export {
  bucket = "results"
  prefix = "exports/"
}
`), 0600))

	cfg := gt.R1(main.LoadFileConfig(path)).NoError(t)
	gt.Equal(t, cfg.ProjectID, "507152")
	gt.Equal(t, cfg.CompletionURL, "https://example.com/done")
	gt.Equal(t, cfg.Timeout, "5s")
	gt.Equal(t, cfg.Columns, "all_rows")
	gt.Equal(t, cfg.Export.Bucket, "results")
	gt.Equal(t, cfg.Export.Prefix, "exports/")

	t.Run("without export block", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.hcl")
		gt.NoError(t, os.WriteFile(path, []byte(`project_id = "1"`), 0600))
		cfg := gt.R1(main.LoadFileConfig(path)).NoError(t)
		gt.NotNil(t, cfg.Export)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.hcl")
		gt.NoError(t, os.WriteFile(path, []byte(`unknown = "x"`), 0600))
		_, err := main.LoadFileConfig(path)
		gt.Error(t, err)
	})
}

func TestParseColumnPolicy(t *testing.T) {
	gt.Equal(t, gt.R1(main.ParseColumnPolicy("")).NoError(t), trialsink.ColumnsFromFirstRow)
	gt.Equal(t, gt.R1(main.ParseColumnPolicy("first_row")).NoError(t), trialsink.ColumnsFromFirstRow)
	gt.Equal(t, gt.R1(main.ParseColumnPolicy("all_rows")).NoError(t), trialsink.ColumnsFromAllRows)
	_, err := main.ParseColumnPolicy("x")
	gt.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := main.NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	gt.False(t, strings.Contains(buf.String(), "hidden"))
	gt.S(t, buf.String()).Contains(`"msg":"shown"`)
	gt.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	gt.False(t, main.NewLogger("unknown", "text", io.Discard).Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	gt.NoError(t, os.WriteFile(path, []byte("TRIALSINK_TEST_DOTENV=loaded\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("TRIALSINK_TEST_DOTENV") })

	gt.NoError(t, main.LoadDotEnv(path))
	gt.Equal(t, os.Getenv("TRIALSINK_TEST_DOTENV"), "loaded")

	gt.Error(t, main.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
