package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/categories"
	"github.com/pennywise-dev/pennywise/internal/importlog"
	"github.com/pennywise-dev/pennywise/internal/views"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "pennywise-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "pennywise")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/pennywise")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

// run executes the binary and returns stdout. Logs on stderr are only shown
// when the command fails.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("pennywise %s: %s", strings.Join(args, " "), stderr.String())
	}
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err)
	return out
}

func newProject(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, append([]string{"init", dir, "--no-git"}, extra...)...)
	return dir
}

func testdata(name string) string {
	p, err := filepath.Abs(filepath.Join("..", "..", "testdata", name))
	if err != nil {
		panic(err)
	}
	return p
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := newProject(t)

	for _, d := range []string{"logs", "import", filepath.Join("import", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pennywise.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "currency: USD")

	f, err := os.Open(filepath.Join(dir, categories.FileName))
	require.NoError(t, err)
	defer f.Close()
	cats, err := categories.ReadCategories(f)
	require.NoError(t, err)
	assert.Len(t, cats, len(categories.DefaultCategories()))

	_, err = os.Stat(filepath.Join(dir, ".git"))
	assert.True(t, os.IsNotExist(err), "--no-git should skip the repository")
}

func TestInit_TOMLConfig(t *testing.T) {
	dir := newProject(t, "--config-format", "toml", "--currency", "EUR")

	data, err := os.ReadFile(filepath.Join(dir, "pennywise.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "EUR")

	out := mustRun(t, "-C", dir, "categories", "--type", "income")
	assert.Contains(t, out, "Salary")
}

func TestInit_RejectsBadInput(t *testing.T) {
	_, err := run(t, "init", t.TempDir(), "--currency", "XXXX")
	assert.Error(t, err)

	_, err = run(t, "init", t.TempDir(), "--config-format", "ini")
	assert.Error(t, err)

	dir := newProject(t)
	_, err = run(t, "init", dir)
	assert.Error(t, err, "second init should fail")
}

func TestInit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	mustRun(t, "init", dir)

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Equal(t, "init: pennywise project|pennywise <pennywise@localhost>", strings.TrimSpace(string(out)))

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pennywise.db*")

	// imports are committed as they land
	mustRun(t, "-C", dir, "import", testdata("transactions.csv"))
	log = exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err = log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "import: 6 transactions")
}

func TestImport_File(t *testing.T) {
	dir := newProject(t)

	out := mustRun(t, "-C", dir, "import", testdata("transactions.csv"))
	assert.Contains(t, out, "transactions.csv: imported 6 transactions")
	assert.Contains(t, out, "6 transactions stored.")

	out = mustRun(t, "-C", dir, "import", testdata("transactions.csv"))
	assert.Contains(t, out, "12 transactions stored.")

	out = mustRun(t, "-C", dir, "transactions")
	assert.Contains(t, out, "ACME PAYROLL")
	assert.Contains(t, out, "CAFE ROMA, DOWNTOWN")
	assert.Contains(t, out, "12 transactions")

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "transactions.csv", entries[0].Source)
	assert.Equal(t, 6, entries[0].Progress.Processed)
}

func TestImport_Inbox(t *testing.T) {
	dir := newProject(t)

	out := mustRun(t, "-C", dir, "import")
	assert.Contains(t, out, "Nothing to import.")

	data, err := os.ReadFile(testdata("chase_checking.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "jan.csv"), data, 0o644))

	out = mustRun(t, "-C", dir, "import", "--format", "chase")
	assert.Contains(t, out, "jan.csv: imported 6 transactions")

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "jan.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "import", "jan.csv"))
	assert.True(t, os.IsNotExist(err))

	out = mustRun(t, "-C", dir, "transactions", "--type", "transfer")
	assert.Contains(t, out, "ONLINE TRANSFER TO SAV")
	assert.Contains(t, out, "1 transactions")
}

func TestImport_UnknownCategory(t *testing.T) {
	dir := newProject(t)
	csv := "date,description,amount,category,type,account,reference\n" +
		"2025-02-01,VET CLINIC,-80.00,Pets,expense,checking,\n"
	path := filepath.Join(t.TempDir(), "pets.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	out, err := run(t, "-C", dir, "import", path)
	require.Error(t, err)
	assert.Contains(t, out, "Pets")

	out = mustRun(t, "-C", dir, "transactions")
	assert.Contains(t, out, "0 transactions")

	out = mustRun(t, "-C", dir, "import", "--auto-create", path)
	assert.Contains(t, out, "created category Pets")

	data, err := os.ReadFile(filepath.Join(dir, categories.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pets,expense")
}

func TestTransactions_Filters(t *testing.T) {
	dir := newProject(t)
	mustRun(t, "-C", dir, "import", testdata("transactions.csv"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"category", []string{"--category", "Groceries"}, "2 transactions"},
		{"type", []string{"--type", "income"}, "1 transactions"},
		{"date range", []string{"--from", "2025-01-05", "--to", "2025-01-09"}, "3 transactions"},
		{"type and range", []string{"--type", "expense", "--from", "2025-01-04"}, "3 transactions"},
		{"search", []string{"--search", "trader"}, "1 transactions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustRun(t, append([]string{"-C", dir, "transactions"}, tt.args...)...)
			assert.Contains(t, out, tt.want)
		})
	}

	_, err := run(t, "-C", dir, "transactions", "--type", "gift")
	assert.Error(t, err)
	_, err = run(t, "-C", dir, "transactions", "--from", "2025-02-01", "--to", "2025-01-01")
	assert.Error(t, err)
}

func TestCategories(t *testing.T) {
	dir := newProject(t)

	out := mustRun(t, "-C", dir, "categories", "--type", "income")
	assert.Contains(t, out, "Salary")
	assert.Contains(t, out, "Interest")
	assert.NotContains(t, out, "Groceries")

	out = mustRun(t, "-C", dir, "categories", "add", "Pets", "--budget", "40", "--description", "Vet and food")
	assert.Contains(t, out, "Added category Pets")

	out = mustRun(t, "-C", dir, "categories")
	assert.Contains(t, out, "Pets")
	assert.Contains(t, out, "$40.00")

	_, err := run(t, "-C", dir, "categories", "add", "Pets")
	assert.Error(t, err, "duplicate name")
	_, err = run(t, "-C", dir, "categories", "add", "Kitten", "--parent", "Animals")
	assert.Error(t, err, "unknown parent")
}

func TestFilters(t *testing.T) {
	dir := newProject(t)
	mustRun(t, "-C", dir, "import", testdata("transactions.csv"))

	var f views.Filters
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "-C", dir, "filters", "show")), &f))
	assert.Empty(t, f.Categories)

	mustRun(t, "-C", dir, "filters", "set", `{"categories":["Groceries"]}`)
	out := mustRun(t, "-C", dir, "filters", "set", `{"categories":["Groceries","Dining"],"query":null}`)
	require.NoError(t, json.Unmarshal([]byte(out), &f))
	assert.Equal(t, []string{"Groceries", "Dining"}, f.Categories)

	out = mustRun(t, "-C", dir, "transactions", "--saved")
	assert.Contains(t, out, "3 transactions")

	_, err := run(t, "-C", dir, "filters", "set", `["x"]`)
	assert.Error(t, err)
	_, err = run(t, "-C", dir, "filters", "set", `{"query":"x"} junk`)
	assert.Error(t, err, "trailing data after the object")

	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "-C", dir, "filters", "reset")), &f))
	assert.Empty(t, f.Categories)
}

func TestTheme(t *testing.T) {
	dir := newProject(t)

	var th views.Theme
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "-C", dir, "theme", "show")), &th))
	assert.Equal(t, views.Theme{Mode: views.ModeSystem, Accent: "teal"}, th)

	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "-C", dir, "theme", "set", `{"mode":"dark"}`)), &th))
	assert.Equal(t, views.ModeDark, th.Mode)

	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "-C", dir, "theme", "set", `{"mode":"neon","accent":"plum"}`)), &th))
	assert.Equal(t, views.ModeSystem, th.Mode)
	assert.Equal(t, "plum", th.Accent)
}

func TestSchema(t *testing.T) {
	out := mustRun(t, "schema")
	assert.Contains(t, out, "version 1")
	assert.Contains(t, out, "version 2")
	assert.Contains(t, out, "index by_category (category, date)")
	assert.Contains(t, out, "table imports")
}

func TestNotAProject(t *testing.T) {
	_, err := run(t, "-C", t.TempDir(), "transactions")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "--version")
	assert.Contains(t, out, "dev (commit: none")
}
