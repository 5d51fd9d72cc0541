package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checkflac/internal/config"
	"checkflac/internal/jobfile"
	"checkflac/internal/jobs"
	"checkflac/internal/report"
	"checkflac/internal/testsupport"
	"checkflac/internal/verify"
)

type cliEnv struct {
	base       string
	configPath string
	music      string
	jobDir     string
	stateDir   string
	cfg        *config.Config
}

func newCLIEnv(t *testing.T, opts ...testsupport.ConfigOption) cliEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	env := cliEnv{
		base:       base,
		configPath: testsupport.WriteConfigFile(t, base, cfg),
		music:      filepath.Join(base, "music"),
		jobDir:     cfg.Paths.JobDir,
		stateDir:   cfg.Paths.StateDir,
		cfg:        cfg,
	}
	for _, dir := range []string{env.music, env.jobDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func useProducer(t *testing.T, p verify.Producer) {
	t.Helper()
	prev := newProducer
	newProducer = func() verify.Producer { return p }
	t.Cleanup(func() { newProducer = prev })
}

func readJob(t *testing.T, path string) jobs.JobFile {
	t.Helper()
	jf, err := jobfile.Read(path)
	if err != nil {
		t.Fatalf("jobfile.Read: %v", err)
	}
	return jf
}

func statusOf(t *testing.T, jf jobs.JobFile, path string) jobs.Status {
	t.Helper()
	for _, entry := range jf.Entries {
		if entry.Path == path {
			return entry.Status
		}
	}
	t.Fatalf("no entry for %s", path)
	return ""
}

func TestExploreWritesJobFile(t *testing.T) {
	env := newCLIEnv(t)
	testsupport.WriteTree(t, env.music, "a.flac", "sub/b.FLAC", "notes.txt")
	target := filepath.Join(env.base, "out", "job.json")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir out: %v", err)
	}

	out, _, err := env.run(t, "explore", env.music, "-o", target)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if !strings.Contains(out, "Found 2 FLAC files") {
		t.Fatalf("unexpected output: %q", out)
	}

	jf := readJob(t, target)
	if jf.RootDirectory != env.music {
		t.Fatalf("root = %q, want %q", jf.RootDirectory, env.music)
	}
	if len(jf.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(jf.Entries))
	}
	for _, entry := range jf.Entries {
		if entry.Status != jobs.StatusToBeChecked {
			t.Fatalf("entry %s status %s", entry.Path, entry.Status)
		}
	}
}

func TestExploreUsesDefaultNameInJobDirectory(t *testing.T) {
	env := newCLIEnv(t)
	testsupport.WriteTree(t, env.music, "a.flac")

	if _, _, err := env.run(t, "explore", env.music); err != nil {
		t.Fatalf("explore: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(env.jobDir, "checkflac_music_*_job.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one job file in %s, got %v", env.jobDir, matches)
	}
}

func TestExploreWithoutFLACFilesWritesNothing(t *testing.T) {
	env := newCLIEnv(t)
	testsupport.WriteTree(t, env.music, "cover.jpg")

	out, _, err := env.run(t, "explore", env.music)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	if !strings.Contains(out, "No FLAC files found") {
		t.Fatalf("unexpected output: %q", out)
	}
	entries, err := os.ReadDir(env.jobDir)
	if err != nil {
		t.Fatalf("read job dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty job dir, found %d entries", len(entries))
	}
}

func TestExploreMissingDirectoryFails(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := env.run(t, "explore", filepath.Join(env.base, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestExploreRefusesToReplaceJobFile(t *testing.T) {
	env := newCLIEnv(t)
	testsupport.WriteTree(t, env.music, "a.flac")
	target := filepath.Join(env.jobDir, "job.json")

	if _, _, err := env.run(t, "explore", env.music, "-o", target); err != nil {
		t.Fatalf("first explore: %v", err)
	}
	_, _, err := env.run(t, "explore", env.music, "-o", target)
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	if _, _, err := env.run(t, "explore", env.music, "-o", target, "--force"); err != nil {
		t.Fatalf("explore --force: %v", err)
	}
}

func TestCheckVerifiesAllFilesAndRecordsHistory(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac", "c.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	producer := testsupport.NewFakeProducer()
	useProducer(t, producer)

	out, _, err := env.run(t, "check", jobPath, "-t", "2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "All files verified successfully!") {
		t.Fatalf("unexpected output: %q", out)
	}
	if producer.TotalCalls() != 3 {
		t.Fatalf("verified %d files, want 3", producer.TotalCalls())
	}
	jf := readJob(t, jobPath)
	for _, p := range paths {
		if got := statusOf(t, jf, p); got != jobs.StatusOK {
			t.Fatalf("%s status = %s, want OK", p, got)
		}
	}
	if _, err := os.Stat(jobfile.LockPath(jobPath)); err != nil {
		t.Fatalf("expected lock file to remain: %v", err)
	}

	out, _, err = env.run(t, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []historyEntry
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 {
		t.Fatalf("history runs = %d, want 1", len(runs))
	}
	if runs[0].JobFile != jobPath || runs[0].Checked != 3 || runs[0].OK != 3 || runs[0].Pending != 0 {
		t.Fatalf("unexpected run: %+v", runs[0])
	}

	store := testsupport.MustOpenHistory(t, env.cfg)
	run, err := store.Get(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("history get: %v", err)
	}
	if run == nil || run.Workers != 2 || run.Stopped {
		t.Fatalf("unexpected stored run: %+v", run)
	}
}

func TestCheckUsesConfigDefaults(t *testing.T) {
	env := newCLIEnv(t, testsupport.WithContinueOnError(), testsupport.WithWorkers(1), testsupport.WithoutHistory())
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	producer := testsupport.NewFakeProducer().Set(paths[0], jobs.OutcomeBad(jobs.VerificationFailedMessage))
	useProducer(t, producer)

	if _, _, err := env.run(t, "check", jobPath); err != nil {
		t.Fatalf("check: %v", err)
	}
	if producer.TotalCalls() != 2 {
		t.Fatalf("verified %d files, want 2", producer.TotalCalls())
	}
	if producer.MaxConcurrent() != 1 {
		t.Fatalf("max concurrent = %d, want 1", producer.MaxConcurrent())
	}

	_, _, err := env.run(t, "history")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled history error, got %v", err)
	}

	_, _, err = env.run(t, "check", jobPath, "--retry-bad", "--continue-on-error=false")
	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error after re-checking the bad file, got %v", err)
	}
	if producer.Calls(paths[0]) != 2 {
		t.Fatalf("bad file verified %d times, want 2", producer.Calls(paths[0]))
	}
}

func TestCheckStopsAtFirstFailure(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac", "c.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	producer := testsupport.NewFakeProducer().Set(paths[0], jobs.OutcomeBad(jobs.VerificationFailedMessage))
	useProducer(t, producer)

	_, _, err := env.run(t, "check", jobPath, "--threads", "1")
	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != exitFailure {
		t.Fatalf("exit code = %d, want %d", exitErr.ExitCode(), exitFailure)
	}
	if exitErr.Error() != "Check completed with 0 errors and 1 bad files" {
		t.Fatalf("unexpected message %q", exitErr.Error())
	}

	jf := readJob(t, jobPath)
	if got := statusOf(t, jf, paths[0]); got != jobs.StatusBad {
		t.Fatalf("first file status = %s, want Bad", got)
	}
	stats := jf.Statistics()
	if stats.ToBeChecked != 2 {
		t.Fatalf("pending = %d, want 2", stats.ToBeChecked)
	}
}

func TestCheckContinueOnErrorChecksEverything(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac", "c.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	producer := testsupport.NewFakeProducer().
		Set(paths[0], jobs.OutcomeError("unexpected end of stream")).
		Set(paths[1], jobs.OutcomeBad(jobs.VerificationFailedMessage))
	useProducer(t, producer)

	out, _, err := env.run(t, "check", jobPath, "-c", "-t", "1")
	if err != nil {
		t.Fatalf("check -c: %v", err)
	}
	if !strings.Contains(out, "Found 1 bad and 1 error files.") {
		t.Fatalf("unexpected output: %q", out)
	}
	if producer.TotalCalls() != 3 {
		t.Fatalf("verified %d files, want 3", producer.TotalCalls())
	}
}

func TestCheckRetriesErrorsButNotBadFiles(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac", "c.flac")
	jf := jobs.JobFile{
		RootDirectory: env.music,
		Entries: []jobs.Entry{
			{Path: paths[0], Status: jobs.StatusOK},
			{Path: paths[1], Status: jobs.StatusBad, ErrorMessage: jobs.VerificationFailedMessage},
			{Path: paths[2], Status: jobs.StatusError, ErrorMessage: "read failed"},
		},
	}
	jobPath := testsupport.SaveJobFile(t, env.jobDir, jf)

	producer := testsupport.NewFakeProducer()
	useProducer(t, producer)
	if _, _, err := env.run(t, "check", jobPath); err != nil {
		t.Fatalf("check: %v", err)
	}
	if producer.Calls(paths[2]) != 1 || producer.Calls(paths[1]) != 0 || producer.Calls(paths[0]) != 0 {
		t.Fatalf("unexpected calls: order %v", producer.Order())
	}
	if got := statusOf(t, readJob(t, jobPath), paths[2]); got != jobs.StatusOK {
		t.Fatalf("retried file status = %s, want OK", got)
	}

	if _, _, err := env.run(t, "check", jobPath, "--retry-bad"); err != nil {
		t.Fatalf("check --retry-bad: %v", err)
	}
	if producer.Calls(paths[1]) != 1 {
		t.Fatalf("bad file verified %d times, want 1", producer.Calls(paths[1]))
	}
	if got := statusOf(t, readJob(t, jobPath), paths[1]); got != jobs.StatusOK {
		t.Fatalf("bad file status = %s, want OK", got)
	}
}

func TestCheckRejectsLockedJobFile(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	useProducer(t, testsupport.NewFakeProducer())

	lock, err := jobfile.Acquire(jobPath)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = env.run(t, "check", jobPath)
	if err == nil || !strings.Contains(err.Error(), "another process") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestCheckNothingPending(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac")
	jobPath := testsupport.SaveJobFile(t, env.jobDir, jobs.JobFile{
		RootDirectory: env.music,
		Entries:       []jobs.Entry{{Path: paths[0], Status: jobs.StatusOK}},
	})
	producer := testsupport.NewFakeProducer()
	useProducer(t, producer)

	out, _, err := env.run(t, "check", jobPath, "--no-history")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "No files to check!") {
		t.Fatalf("unexpected output: %q", out)
	}
	if producer.TotalCalls() != 0 {
		t.Fatalf("verified %d files, want 0", producer.TotalCalls())
	}

	out, _, err = env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Fatalf("expected no runs, got %q", out)
	}
}

func TestCheckJSONOutput(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac", "b.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	useProducer(t, testsupport.NewFakeProducer())

	out, _, err := env.run(t, "check", jobPath, "--json")
	if err != nil {
		t.Fatalf("check --json: %v", err)
	}
	var payload checkOutput
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if payload.Checked != 2 || payload.OK != 2 || payload.RunID == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Summary.SuccessRate != 100 {
		t.Fatalf("success rate = %v, want 100", payload.Summary.SuccessRate)
	}
}

func statsFixture(t *testing.T, env cliEnv) (string, []string) {
	t.Helper()
	paths := testsupport.WriteTree(t, env.music, "ok.flac", "bad.flac", "err.flac", "todo.flac")
	jobPath := testsupport.SaveJobFile(t, env.jobDir, jobs.JobFile{
		RootDirectory: env.music,
		Entries: []jobs.Entry{
			{Path: paths[0], Status: jobs.StatusOK},
			{Path: paths[1], Status: jobs.StatusBad, ErrorMessage: jobs.VerificationFailedMessage},
			{Path: paths[2], Status: jobs.StatusError, ErrorMessage: "unexpected end of stream"},
			{Path: paths[3], Status: jobs.StatusToBeChecked},
		},
	})
	return jobPath, paths
}

func TestStatsListsFailuresAndHints(t *testing.T) {
	env := newCLIEnv(t)
	jobPath, _ := statsFixture(t, env)

	out, _, err := env.run(t, "stats", jobPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{
		"Bad files (1):",
		"  bad.flac",
		jobs.VerificationFailedMessage,
		"Error files (1):",
		"unexpected end of stream",
		"1 OK files (use --show-ok to list them)",
		"1 pending files (use --show-pending to list them)",
		"Success rate: 33.33% of 3 checked files",
		"Found 1 bad and 1 error files.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsShowFlags(t *testing.T) {
	env := newCLIEnv(t)
	jobPath, paths := statsFixture(t, env)

	out, _, err := env.run(t, "stats", jobPath, "--show-ok", "--show-pending", "--full-paths")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "OK files (1):") || !strings.Contains(out, "Pending files (1):") {
		t.Fatalf("expected OK and pending listings:\n%s", out)
	}
	if !strings.Contains(out, paths[0]) {
		t.Fatalf("expected full path %s in output:\n%s", paths[0], out)
	}
}

func TestStatsJSON(t *testing.T) {
	env := newCLIEnv(t)
	jobPath, _ := statsFixture(t, env)

	out, _, err := env.run(t, "stats", jobPath, "--json")
	if err != nil {
		t.Fatalf("stats --json: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if summary.Total != 4 || len(summary.Bad) != 1 || len(summary.Errors) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.OK) != 0 || len(summary.Pending) != 0 {
		t.Fatalf("OK and pending lists should be empty without flags: %+v", summary)
	}
}

func TestStatsDoesNotModifyJobFile(t *testing.T) {
	env := newCLIEnv(t)
	jobPath, _ := statsFixture(t, env)
	before, err := os.ReadFile(jobPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, _, err := env.run(t, "stats", jobPath); err != nil {
		t.Fatalf("stats: %v", err)
	}
	after, err := os.ReadFile(jobPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("stats modified the job file")
	}
}

func TestHistoryPrune(t *testing.T) {
	env := newCLIEnv(t)
	paths := testsupport.WriteTree(t, env.music, "a.flac")
	jobPath := testsupport.WriteJobFile(t, env.jobDir, env.music, paths)
	useProducer(t, testsupport.NewFakeProducer())

	for range 3 {
		if _, _, err := env.run(t, "check", jobPath); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	out, _, err := env.run(t, "history", "prune", "--keep", "1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Removed 2 runs") {
		t.Fatalf("unexpected output: %q", out)
	}
	out, _, err = env.run(t, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []historyEntry
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs after prune = %d, want 1", len(runs))
	}
}
