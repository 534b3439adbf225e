package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/assure-cli/internal/script"
)

const loginScript = `TEST login
OPEN https://example.com
CLICK #login
TEST profile
EXPECT TITLE CONTAINS Profile
CLICK #save
`

func parse(t *testing.T) []script.Command {
	t.Helper()
	cmds, err := script.ParseString(loginScript)
	require.NoError(t, err)
	return cmds
}

// replay drives r through a run that fails at the EXPECT on line 5.
func replay(r Reporter, cmds []script.Command, failure error) {
	r.Begin("tests/login.assure", cmds)
	for _, cmd := range cmds[:4] {
		r.CommandStarted(cmd)
		r.CommandPassed(cmd, 250*time.Millisecond)
	}
	r.CommandStarted(cmds[4])
	r.CommandFailed(cmds[4], time.Second, failure)
}

func failedSummary(failure error) Summary {
	return Summary{Script: "tests/login.assure", Total: 6, Executed: 5, Duration: 2 * time.Second, FailedLine: 5, Err: failure}
}

func TestConsole(t *testing.T) {
	t.Run("FailedRun", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(&buf)
		failure := errors.New(`expected TITLE CONTAINS "Profile", got "Home"`)

		replay(c, parse(t), failure)
		require.NoError(t, c.Finish(failedSummary(failure)))

		out := buf.String()
		assert.Contains(t, out, "📄 Running: tests/login.assure (6 commands)")
		assert.Contains(t, out, "▶ TEST login\n")
		assert.Contains(t, out, "✓ Line 2: OPEN https://example.com\n")
		assert.Contains(t, out, "✓ Line 3: CLICK #login\n")
		assert.Contains(t, out, "▶ TEST profile\n")
		assert.Contains(t, out, "❌ Error at line 5: EXPECT TITLE CONTAINS Profile\n   expected TITLE")
		assert.Contains(t, out, "❌ TEST FAILED: expected TITLE")
		assert.Contains(t, out, "5 of 6 commands executed in 2s")
		assert.NotContains(t, out, "Line 1:", "TEST headers are not reported as steps")
		assert.NotContains(t, out, "Line 6:")
	})

	t.Run("PassedRun", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(&buf)
		require.NoError(t, c.Finish(Summary{Passed: true, Executed: 3, Total: 3, Duration: 1500 * time.Millisecond}))
		assert.Contains(t, buf.String(), "✅ TEST COMPLETED SUCCESSFULLY (3 commands in 1.5s)")
	})
}

func TestJUnit(t *testing.T) {
	failure := errors.New("element \"#save\" not found within 10s")
	j := NewJUnit("")
	j.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	cmds := parse(t)
	replay(j, cmds, failure)

	var buf bytes.Buffer
	require.NoError(t, j.WriteTo(&buf, failedSummary(failure)))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("testsuites")
	require.NotNil(t, root)
	assert.Equal(t, "4", root.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", root.SelectAttrValue("failures", ""))
	assert.Equal(t, "2.000", root.SelectAttrValue("time", ""))

	suite := root.SelectElement("testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "login", suite.SelectAttrValue("name", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("skipped", ""))
	assert.Equal(t, "2026-03-01T12:00:00Z", suite.SelectAttrValue("timestamp", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 4)

	assert.Equal(t, "Line 2: OPEN https://example.com", cases[0].SelectAttrValue("name", ""))
	assert.Equal(t, "login", cases[0].SelectAttrValue("classname", ""))
	assert.Equal(t, "0.250", cases[0].SelectAttrValue("time", ""))
	assert.Nil(t, cases[0].SelectElement("failure"))

	assert.Equal(t, "profile", cases[2].SelectAttrValue("classname", ""))
	f := cases[2].SelectElement("failure")
	require.NotNil(t, f)
	assert.Equal(t, failure.Error(), f.SelectAttrValue("message", ""))
	assert.Contains(t, f.Text(), "line 5: EXPECT TITLE CONTAINS Profile")

	assert.Equal(t, "Line 6: CLICK #save", cases[3].SelectAttrValue("name", ""))
	assert.NotNil(t, cases[3].SelectElement("skipped"))
}

func TestJUnitWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "nested", "junit.xml")
	j := NewJUnit(path)
	cmds := parse(t)
	j.Begin("login.assure", cmds)
	for _, cmd := range cmds {
		j.CommandPassed(cmd, time.Millisecond)
	}

	require.NoError(t, j.Finish(Summary{Passed: true, Total: 6, Executed: 6}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, string(data), `failures="0"`)
	assert.NotContains(t, string(data), "<skipped")
}

func TestJUnitWithoutPathIsNoop(t *testing.T) {
	assert.NoError(t, NewJUnit("").Finish(Summary{}))
}

type recorder struct {
	calls     []string
	finishErr error
}

func (r *recorder) Begin(string, []script.Command)                     { r.calls = append(r.calls, "begin") }
func (r *recorder) CommandStarted(script.Command)                      { r.calls = append(r.calls, "started") }
func (r *recorder) CommandPassed(script.Command, time.Duration)        { r.calls = append(r.calls, "passed") }
func (r *recorder) CommandFailed(script.Command, time.Duration, error) { r.calls = append(r.calls, "failed") }
func (r *recorder) Finish(Summary) error {
	r.calls = append(r.calls, "finish")
	return r.finishErr
}

func TestMulti(t *testing.T) {
	errA, errB := errors.New("disk full"), errors.New("read-only")
	a, b := &recorder{finishErr: errA}, &recorder{finishErr: errB}
	m := Multi{a, b}

	cmds := parse(t)
	replay(m, cmds, errors.New("boom"))
	err := m.Finish(Summary{})

	want := []string{"begin", "started", "passed", "started", "passed", "started", "passed", "started", "passed", "started", "failed", "finish"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}
