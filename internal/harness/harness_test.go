package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simphotonics/lockattr/internal/ir"
)

const policiesDir = "testdata/policies"

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenarioWithBasePath(filepath.Join("testdata", "scenarios", name+".yaml"), policiesDir)
	require.NoError(t, err)
	return s
}

func TestRun_AccountWriteOnce(t *testing.T) {
	scenario := loadTestScenario(t, "account_write_once")

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 4, result.Count(OutcomeOK))
	assert.Equal(t, 1, result.Count(OutcomeProtected))
	assert.Equal(t, 1, result.Count(OutcomeError))

	assert.Equal(t, ir.Map{
		"data": ir.String("x"),
		"id":   ir.Int(7),
		"name": ir.String("z2"),
	}, result.State["a"])
}

func TestRun_ProtectAll(t *testing.T) {
	scenario := loadTestScenario(t, "protect_all")

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Count(OutcomeProtected))
}

func TestRun_ClassScope(t *testing.T) {
	scenario := loadTestScenario(t, "class_scope")

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.Map{"note": ir.String("second")}, result.State["r2"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "account_write_once")

	r1, err := Run(scenario)
	require.NoError(t, err)
	r2, err := Run(scenario)
	require.NoError(t, err)

	b1, err := Snapshot(scenario.Name, r1).MarshalCanonical()
	require.NoError(t, err)
	b2, err := Snapshot(scenario.Name, r2).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "second write of data wrongly expected to succeed",
		Policy:      filepath.Join(policiesDir, "account.cue"),
		Objects:     []ObjectDecl{{Ref: "a", Kind: "Account"}},
		Steps: []Step{
			{Set: "a", Attr: "data", Value: "x", Expect: OutcomeOK},
			{Set: "a", Attr: "data", Value: "y", Expect: OutcomeOK},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] a.data: expected ok, got protected")
	assert.Contains(t, result.Errors[0], "Class attribute 'data' must not be modified.")
}

func TestRun_AssertionFailures(t *testing.T) {
	no := false
	scenario := &Scenario{
		Name:        "bad_assertions",
		Description: "every assertion is wrong",
		Policy:      filepath.Join(policiesDir, "account.cue"),
		Objects:     []ObjectDecl{{Ref: "a", Kind: "Account"}},
		Steps:       []Step{{Set: "a", Attr: "data", Value: "x"}},
		Assertions: []Assertion{
			{Type: AssertFinalValue, Object: "a", Attr: "data", Value: "other"},
			{Type: AssertFinalValue, Object: "a", Attr: "missing", Value: 1},
			{Type: AssertUnset, Object: "a", Attr: "data"},
			{Type: AssertWriteCount, Object: "a", Attr: "data", Count: 3},
			{Type: AssertLocked, Object: "a", Attr: "data", Locked: &no},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], `expected "other", got "x"`)
	assert.Contains(t, result.Errors[1], "got unset")
	assert.Contains(t, result.Errors[2], `expected unset, got "x"`)
	assert.Contains(t, result.Errors[3], "expected 3 writes, got 1 writes")
	assert.Contains(t, result.Errors[4], "expected locked=false, got locked=true")
}

func TestRun_UnguardedKind(t *testing.T) {
	scenario := &Scenario{
		Name:        "unguarded",
		Description: "kinds without a rule are never locked",
		Policy:      filepath.Join(policiesDir, "account.cue"),
		Objects:     []ObjectDecl{{Ref: "n", Kind: "Note"}},
		Steps: []Step{
			{Set: "n", Attr: "body", Value: "a", Expect: OutcomeOK},
			{Set: "n", Attr: "body", Value: "b", Expect: OutcomeOK},
		},
		Assertions: []Assertion{
			{Type: AssertWriteCount, Object: "n", Attr: "body", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_LogsRejections(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadTestScenario(t, "protect_all"), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rejected write to protected attribute")
	assert.Contains(t, buf.String(), "step executed")
}

func TestRun_PolicyLoadError(t *testing.T) {
	scenario := &Scenario{
		Name:    "missing_policy",
		Policy:  filepath.Join(t.TempDir(), "nope.cue"),
		Objects: []ObjectDecl{{Ref: "a", Kind: "Account"}},
		Steps:   []Step{{Set: "a", Attr: "data"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load policy")
}

func TestRun_MemoryBackendMatchesGolden(t *testing.T) {
	for _, name := range []string{"account_write_once", "protect_all"} {
		t.Run(name, func(t *testing.T) {
			scenario := loadTestScenario(t, name)

			result, err := Run(scenario, WithBackend(BackendMemory))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			require.NoError(t, AssertGolden(t, name, result))
		})
	}
}

func TestRun_MemoryBackendState(t *testing.T) {
	result, err := Run(loadTestScenario(t, "account_write_once"), WithBackend(BackendMemory))
	require.NoError(t, err)
	assert.Equal(t, ir.Map{
		"data": ir.String("x"),
		"id":   ir.Int(7),
		"name": ir.String("z2"),
	}, result.State["a"])
}

func TestRun_MemoryBackendClassScope(t *testing.T) {
	scenario := loadTestScenario(t, "class_scope")
	scenario.Backend = BackendMemory

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Count(OutcomeProtected))
}

func TestRun_MemoryBackendAssertionFailures(t *testing.T) {
	no := false
	scenario := &Scenario{
		Name:        "bad_assertions_memory",
		Description: "every assertion is wrong",
		Policy:      filepath.Join(policiesDir, "account.cue"),
		Backend:     BackendMemory,
		Objects:     []ObjectDecl{{Ref: "a", Kind: "Account"}},
		Steps:       []Step{{Set: "a", Attr: "data", Value: "x"}},
		Assertions: []Assertion{
			{Type: AssertFinalValue, Object: "a", Attr: "missing", Value: 1},
			{Type: AssertUnset, Object: "a", Attr: "data"},
			{Type: AssertWriteCount, Object: "a", Attr: "data", Count: 3},
			{Type: AssertLocked, Object: "a", Attr: "data", Locked: &no},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "got unset")
	assert.Contains(t, result.Errors[1], `expected unset, got "x"`)
	assert.Contains(t, result.Errors[2], "expected 3 writes, got 1 writes")
	assert.Contains(t, result.Errors[3], "expected locked=false, got locked=true")
}

func TestRun_MemoryBackendLogsRejections(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(loadTestScenario(t, "protect_all"), WithBackend(BackendMemory), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rejected write to protected attribute")
	assert.Contains(t, buf.String(), "backend=memory")
}

func TestRun_UnknownBackend(t *testing.T) {
	_, err := Run(loadTestScenario(t, "protect_all"), WithBackend("redis"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "redis"`)
}
