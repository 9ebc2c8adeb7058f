package e2e

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var (
	shellctlBin string
	projRoot    string
	testEnv     *E2ETestEnvironment
)

func TestMain(m *testing.M) {
	var err error

	// Build shellctl once for all tests
	tmpBinDir, err := os.MkdirTemp("", "shellctl-bin")
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := os.RemoveAll(tmpBinDir); err != nil {
			panic(err)
		}
	}()

	shellctlBin = filepath.Join(tmpBinDir, "shellctl")

	// Determine project root
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot determine current file path")
	}
	projRoot = filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", shellctlBin, "./cmd/shellctl")
	cmd.Dir = projRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic(string(out))
	}

	testEnv, err = NewE2ETestEnvironment(shellctlBin)
	if err != nil {
		panic(err)
	}
	defer testEnv.Close()

	code := m.Run()
	os.Exit(code)
}

func TestE2EListFolder(t *testing.T) {
	dir := testEnv.NewTree(t, map[string]string{
		"readme.md":   "# hello\n",
		"src/main.go": "package main\n",
		"src/util.go": "package main\n",
	})

	res := testEnv.Run(t, "ls", dir)
	res.RequireOK(t)
	if !strings.Contains(res.Stdout, "readme.md") || !strings.Contains(res.Stdout, "src/") {
		t.Errorf("unexpected listing:\n%s", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "2 items") {
		t.Errorf("expected item count, got:\n%s", res.Stdout)
	}

	res = testEnv.Run(t, "ls", filepath.Join(dir, "src"), "--glob", "m*.go")
	res.RequireOK(t)
	if strings.Contains(res.Stdout, "util.go") || !strings.Contains(res.Stdout, "main.go") {
		t.Errorf("glob not applied:\n%s", res.Stdout)
	}
}

func TestE2ECopyAndCollision(t *testing.T) {
	dir := testEnv.NewTree(t, map[string]string{
		"a.txt":     "first",
		"out/a.txt": "old",
	})
	src, out := filepath.Join(dir, "a.txt"), filepath.Join(dir, "out")

	res := testEnv.Run(t, "cp", src, out)
	if res.Err == nil {
		t.Fatalf("expected collision failure, got:\n%s", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "ERROR_ALREADY_EXISTS") {
		t.Errorf("missing status in output:\n%s", res.Stdout)
	}

	res = testEnv.Run(t, "cp", src, out, "--rename-on-collision")
	res.RequireOK(t)
	assertContent(t, filepath.Join(out, "a (2).txt"), "first")

	res = testEnv.Run(t, "cp", src, out, "--no-confirmation")
	res.RequireOK(t)
	assertContent(t, filepath.Join(out, "a.txt"), "first")
}

func TestE2EBatch(t *testing.T) {
	dir := testEnv.NewTree(t, map[string]string{
		"a.txt":      "a",
		"b.txt":      "b",
		"trash.txt":  "x",
		"batch.json": "",
		"out/":       "",
		"recycle/":   "",
	})
	batch := `[
		{"op": "copy", "source": "a.txt", "dest": "out", "name": "a.bak"},
		{"op": "move", "source": "b.txt", "dest": "out"},
		{"op": "rename", "source": "a.txt", "name": "c.txt"},
		{"op": "create", "dest": "out", "name": "logs", "folder": true},
		{"op": "delete", "source": "trash.txt"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "batch.json"), []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}

	res := testEnv.Run(t, "batch", filepath.Join(dir, "batch.json"), "--recycle-dir", filepath.Join(dir, "recycle"))
	res.RequireOK(t)

	assertContent(t, filepath.Join(dir, "out", "a.bak"), "a")
	assertContent(t, filepath.Join(dir, "out", "b.txt"), "b")
	assertContent(t, filepath.Join(dir, "c.txt"), "a")
	assertContent(t, filepath.Join(dir, "recycle", "trash.txt"), "x")
	if fi, err := os.Stat(filepath.Join(dir, "out", "logs")); err != nil || !fi.IsDir() {
		t.Errorf("folder not created: %v", err)
	}
}

func TestE2EWatch(t *testing.T) {
	dir := testEnv.NewTree(t, map[string]string{"keep.txt": "k"})

	w := testEnv.Start(t, "watch", dir, "--debounce-ms", "50", "-v", "4")
	time.Sleep(500 * time.Millisecond)
	if err := os.Mkdir(filepath.Join(dir, "made"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !w.WaitForOutput("FolderCreated", 5*time.Second) {
		stdout, stderr := w.GetLogs()
		t.Fatalf("no event printed\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}
	w.Stop()
}

func TestE2EInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("notify_queue_size: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := testEnv.Run(t, "ls", dir, "--config", cfgPath)
	if res.Err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(res.Stderr, "NotifyQueueSize") {
		t.Errorf("expected field in error, got:\n%s", res.Stderr)
	}
}

// E2ETestEnvironment holds the built binary and a base dir for test trees.
type E2ETestEnvironment struct {
	ShellctlBin string
	BaseDir     string
}

// RunResult is the outcome of one shellctl invocation.
type RunResult struct {
	Stdout string
	Stderr string
	Err    error
}

// ShellctlInstance is a long-running shellctl process.
type ShellctlInstance struct {
	Cmd    *exec.Cmd
	stdout *syncBuffer
	stderr *syncBuffer
}

func NewE2ETestEnvironment(shellctlBinary string) (*E2ETestEnvironment, error) {
	baseDir, err := os.MkdirTemp("", "shellctl-e2e-tests")
	if err != nil {
		return nil, err
	}
	return &E2ETestEnvironment{ShellctlBin: shellctlBinary, BaseDir: baseDir}, nil
}

func (env *E2ETestEnvironment) Close() {
	if err := os.RemoveAll(env.BaseDir); err != nil {
		panic(err)
	}
}

// NewTree creates files under a fresh dir. Names ending in "/" are folders.
func (env *E2ETestEnvironment) NewTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := os.MkdirTemp(env.BaseDir, strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func (env *E2ETestEnvironment) Run(t *testing.T, args ...string) *RunResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(env.ShellctlBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return &RunResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

func (r *RunResult) RequireOK(t *testing.T) {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("shellctl failed: %v\nstdout:\n%s\nstderr:\n%s", r.Err, r.Stdout, r.Stderr)
	}
}

func (env *E2ETestEnvironment) Start(t *testing.T, args ...string) *ShellctlInstance {
	t.Helper()
	inst := &ShellctlInstance{stdout: &syncBuffer{}, stderr: &syncBuffer{}}
	inst.Cmd = exec.Command(env.ShellctlBin, args...)
	inst.Cmd.Stdout = inst.stdout
	inst.Cmd.Stderr = inst.stderr
	if err := inst.Cmd.Start(); err != nil {
		t.Fatalf("failed to start shellctl: %v", err)
	}
	t.Cleanup(inst.Stop)
	return inst
}

// Stop interrupts the process and waits for it to exit.
func (w *ShellctlInstance) Stop() {
	if w.Cmd.ProcessState != nil {
		return
	}
	if err := w.Cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		w.Cmd.Process.Kill() // nolint:errcheck
	}
	done := make(chan struct{})
	go func() {
		w.Cmd.Wait() // nolint:errcheck
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		w.Cmd.Process.Kill() // nolint:errcheck
		<-done
	}
}

func (w *ShellctlInstance) WaitForOutput(substr string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(w.stdout.String(), substr) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func (w *ShellctlInstance) GetLogs() (stdout, stderr string) {
	return w.stdout.String(), w.stderr.String()
}

func assertContent(t *testing.T, path, expected string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("failed to read %s: %v", path, err)
		return
	}
	if string(data) != expected {
		t.Errorf("%s = %q, want %q", path, data, expected)
	}
}
