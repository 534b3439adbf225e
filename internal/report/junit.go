package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/assure-cli/internal/script"
)

type stepResult struct {
	elapsed time.Duration
	err     error
}

// JUnit collects step results and writes a JUnit XML report on Finish.
// Each non-TEST command is a test case; TEST labels become the class name of
// the cases that follow them.
type JUnit struct {
	path string
	now  func() time.Time

	mu         sync.Mutex
	scriptPath string
	commands   []script.Command
	started    time.Time
	results    map[int]stepResult
}

// NewJUnit creates a reporter that writes to path when the run finishes.
func NewJUnit(path string) *JUnit {
	return &JUnit{path: path, now: time.Now, results: make(map[int]stepResult)}
}

func (j *JUnit) Begin(path string, commands []script.Command) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.scriptPath = path
	j.commands = append([]script.Command(nil), commands...)
	j.started = j.now()
}

func (j *JUnit) CommandStarted(script.Command) {}

func (j *JUnit) CommandPassed(cmd script.Command, elapsed time.Duration) {
	j.record(cmd, stepResult{elapsed: elapsed})
}

func (j *JUnit) CommandFailed(cmd script.Command, elapsed time.Duration, err error) {
	j.record(cmd, stepResult{elapsed: elapsed, err: err})
}

func (j *JUnit) record(cmd script.Command, r stepResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[cmd.Line] = r
}

// Finish writes the report file.
func (j *JUnit) Finish(s Summary) error {
	if j.path == "" {
		return nil
	}
	return j.WriteFile(j.path, s)
}

// WriteFile renders the report and writes it to path, creating parent
// directories as needed.
func (j *JUnit) WriteFile(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	doc := j.document(s)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("failed to write junit report %s: %w", path, err)
	}
	return nil
}

// WriteTo renders the report to w.
func (j *JUnit) WriteTo(w io.Writer, s Summary) error {
	_, err := j.document(s).WriteTo(w)
	return err
}

func (j *JUnit) document(s Summary) *etree.Document {
	j.mu.Lock()
	defer j.mu.Unlock()

	name := j.scriptPath
	if name == "" {
		name = s.Script
	}
	suiteName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	className := suiteName

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")
	suite := root.CreateElement("testsuite")

	var tests, failures, skipped int
	for _, cmd := range j.commands {
		if isTest(cmd) {
			if l := label(cmd); l != "" {
				className = l
			}
			continue
		}
		tests++
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("Line %d: %s", cmd.Line, cmd.Raw))
		tc.CreateAttr("classname", className)

		r, ok := j.results[cmd.Line]
		if !ok {
			skipped++
			tc.CreateAttr("time", seconds(0))
			tc.CreateElement("skipped").CreateAttr("message", "not executed")
			continue
		}
		tc.CreateAttr("time", seconds(r.elapsed))
		if r.err != nil {
			failures++
			f := tc.CreateElement("failure")
			f.CreateAttr("message", r.err.Error())
			f.CreateAttr("type", fmt.Sprintf("%T", r.err))
			f.SetText(fmt.Sprintf("line %d: %s\n%v", cmd.Line, cmd.Raw, r.err))
		}
	}

	elapsed := seconds(s.Duration)
	root.CreateAttr("name", "assure")
	root.CreateAttr("tests", fmt.Sprint(tests))
	root.CreateAttr("failures", fmt.Sprint(failures))
	root.CreateAttr("time", elapsed)

	suite.CreateAttr("name", suiteName)
	suite.CreateAttr("tests", fmt.Sprint(tests))
	suite.CreateAttr("failures", fmt.Sprint(failures))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("skipped", fmt.Sprint(skipped))
	suite.CreateAttr("time", elapsed)
	if !j.started.IsZero() {
		suite.CreateAttr("timestamp", j.started.UTC().Format(time.RFC3339))
	}

	doc.Indent(2)
	return doc
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
