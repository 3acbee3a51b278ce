package guard

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record is a minimal attribute holder used as a guard target.
type record struct {
	attrs map[string]any
}

func newRecord() *record {
	return &record{attrs: make(map[string]any)}
}

// mapWriter stores writes directly on the record and counts them.
type mapWriter struct {
	calls int
}

func (w *mapWriter) SetAttr(r *record, name string, value any) error {
	w.calls++
	r.attrs[name] = value
	return nil
}

func TestGuard_FirstWriteToProtectedNameSucceeds(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"data", "id"})
	r := newRecord()

	require.NoError(t, g.SetAttr(r, "data", "x"))
	assert.Equal(t, "x", r.attrs["data"])
	assert.True(t, g.Locked(r, "data"))
	assert.False(t, g.Locked(r, "id"))
}

func TestGuard_SecondWriteToProtectedNameRejected(t *testing.T) {
	w := &mapWriter{}
	g := Protect[record](w, []string{"data", "id"})
	r := newRecord()

	require.NoError(t, g.SetAttr(r, "data", "x"))
	err := g.SetAttr(r, "data", "y")
	require.Error(t, err)

	var pe *ProtectedAttributeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "data", pe.Name)

	// No write reached the wrapped writer.
	assert.Equal(t, "x", r.attrs["data"])
	assert.Equal(t, 1, w.calls)
}

func TestGuard_UnprotectedNameWritableRepeatedly(t *testing.T) {
	w := &mapWriter{}
	g := Protect[record](w, []string{"data", "id"})
	r := newRecord()

	for i := 0; i < 10; i++ {
		require.NoError(t, g.SetAttr(r, "name", i))
	}
	assert.Equal(t, 9, r.attrs["name"])
	assert.Equal(t, 10, w.calls)
	assert.False(t, g.Locked(r, "name"))
}

func TestGuard_ProtectAllWhenNamesEmpty(t *testing.T) {
	for _, names := range [][]string{nil, {}} {
		g := Protect[record](&mapWriter{}, names)
		r := newRecord()

		assert.True(t, g.ProtectsAll())
		assert.Nil(t, g.Names())

		require.NoError(t, g.SetAttr(r, "data", "one"))
		assert.True(t, IsProtectedError(g.SetAttr(r, "data", "overwrite")))

		require.NoError(t, g.SetAttr(r, "b42", "initial"))
		assert.True(t, IsProtectedError(g.SetAttr(r, "b42", "overwrite")))
	}
}

func TestGuard_ErrorMessage(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"id", "data"})
	r := newRecord()

	require.NoError(t, g.SetAttr(r, "data", 1))
	err := g.SetAttr(r, "data", 98)
	require.Error(t, err)
	assert.Equal(t, "Class attribute 'data' must not be modified.", err.Error())
}

func TestGuard_ProtectedSetScenario(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"data", "id"})
	r := newRecord()

	require.NoError(t, g.SetAttr(r, "data", "x"))
	assert.True(t, IsProtectedError(g.SetAttr(r, "data", "y")))

	require.NoError(t, g.SetAttr(r, "name", "z"))
	require.NoError(t, g.SetAttr(r, "name", "z1"))
	require.NoError(t, g.SetAttr(r, "name", "z2"))

	assert.Equal(t, "x", r.attrs["data"])
	assert.Equal(t, "z2", r.attrs["name"])
}

func TestGuard_InstanceScopeIsolatesTargets(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"data"})
	a, b := newRecord(), newRecord()

	require.NoError(t, g.SetAttr(a, "data", "a"))
	require.NoError(t, g.SetAttr(b, "data", "b"))

	assert.True(t, IsProtectedError(g.SetAttr(a, "data", "a2")))
	assert.True(t, IsProtectedError(g.SetAttr(b, "data", "b2")))
	assert.Equal(t, 2, g.Len())
}

func TestGuard_ClassScopeSharesLedger(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"data"}, WithScope(ScopeClass))
	a, b := newRecord(), newRecord()

	require.NoError(t, g.SetAttr(a, "data", "a"))
	err := g.SetAttr(b, "data", "b")
	assert.True(t, IsProtectedError(err))
	assert.NotContains(t, b.attrs, "data")

	assert.Equal(t, ScopeClass, g.Scope())
	assert.Equal(t, 1, g.Len())
}

func TestGuard_FailedWriteIsNotRecorded(t *testing.T) {
	boom := errors.New("disk full")
	fail := true
	w := WriterFunc[record](func(r *record, name string, value any) error {
		if fail {
			return boom
		}
		r.attrs[name] = value
		return nil
	})
	g := Protect[record](w, []string{"data"})
	r := newRecord()

	err := g.SetAttr(r, "data", "x")
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsProtectedError(err))
	assert.False(t, g.Locked(r, "data"))

	fail = false
	require.NoError(t, g.SetAttr(r, "data", "x"))
	assert.True(t, g.Locked(r, "data"))
}

func TestGuard_NilTarget(t *testing.T) {
	w := &mapWriter{}
	g := Protect[record](w, nil)

	assert.ErrorIs(t, g.SetAttr(nil, "data", "x"), ErrNilTarget)
	assert.False(t, g.Locked(nil, "data"))
	assert.Equal(t, 0, w.calls)
}

func TestGuard_NamesSortedAndDeduplicated(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"id", "data", "id"})

	assert.Equal(t, []string{"data", "id"}, g.Names())
	assert.False(t, g.ProtectsAll())
	assert.True(t, g.Protects("id"))
	assert.False(t, g.Protects("name"))
}

func TestGuard_Stacked(t *testing.T) {
	inner := Protect[record](&mapWriter{}, []string{"id"})
	outer := Protect[record](inner, []string{"data"})
	r := newRecord()

	require.NoError(t, outer.SetAttr(r, "id", 1))
	require.NoError(t, outer.SetAttr(r, "data", "x"))

	err := outer.SetAttr(r, "id", 2)
	name, ok := ProtectedName(err)
	require.True(t, ok)
	assert.Equal(t, "id", name)

	name, ok = ProtectedName(outer.SetAttr(r, "data", "y"))
	require.True(t, ok)
	assert.Equal(t, "data", name)
}

func TestGuard_LedgerReleasedWhenTargetCollected(t *testing.T) {
	g := Protect[record](&mapWriter{}, []string{"data"})

	func() {
		r := newRecord()
		require.NoError(t, g.SetAttr(r, "data", "x"))
	}()
	require.Equal(t, 1, g.Len())

	require.Eventually(t, func() bool {
		runtime.GC()
		return g.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGuard_LogsRejectedWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := Protect[record](&mapWriter{}, []string{"data"}, WithLogger(logger))
	r := newRecord()

	require.NoError(t, g.SetAttr(r, "data", "x"))
	assert.Empty(t, buf.String())

	require.Error(t, g.SetAttr(r, "data", "y"))
	assert.Contains(t, buf.String(), "rejected write to protected attribute")
	assert.Contains(t, buf.String(), "attr=data")
	assert.Contains(t, buf.String(), "scope=instance")
}

func TestIsProtectedError_Wrapped(t *testing.T) {
	err := fmt.Errorf("apply step 3: %w", &ProtectedAttributeError{Name: "id"})

	assert.True(t, IsProtectedError(err))
	name, ok := ProtectedName(err)
	assert.True(t, ok)
	assert.Equal(t, "id", name)

	assert.False(t, IsProtectedError(errors.New("other")))
	assert.False(t, IsProtectedError(nil))
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeInstance, false},
		{"instance", ScopeInstance, false},
		{"class", ScopeClass, false},
		{"global", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(ParseScope(got.String())))
		})
	}
}

func must(s Scope, err error) Scope {
	if err != nil {
		panic(err)
	}
	return s
}
