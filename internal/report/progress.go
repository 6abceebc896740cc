package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/psbr27/testPilotOne/internal/types"
)

// ProgressSink drives a single spinner line from TestResult
// notifications for --display-mode progress (spec.md §6's CLI
// surface), updating its suffix in place rather than the blessed/rich
// terminal dashboard from original_source/blessed_dashboard.py, which
// §1 keeps out of scope. Grounded on giantswarm-muster's
// ToolExecutor.Connect spinner usage.
type ProgressSink struct {
	mu sync.Mutex
	s  *spinner.Spinner

	total, passed, failed, skipped int
}

// NewProgressSink starts a spinner writing to the process's default
// terminal (spinner.New's default target).
func NewProgressSink() *ProgressSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " running..."
	s.Start()
	return &ProgressSink{s: s}
}

// Notify implements dashboard.Sink.
func (p *ProgressSink) Notify(result types.TestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total++
	switch result.Outcome {
	case types.OutcomePass, types.OutcomeDryRun:
		p.passed++
	case types.OutcomeFail:
		p.failed++
	case types.OutcomeSkipped:
		p.skipped++
	}
	p.s.Suffix = fmt.Sprintf(" %s/%s/%s — pass=%d fail=%d skip=%d", result.Sheet, result.TestName, result.Host, p.passed, p.failed, p.skipped)
}

// Stop halts the spinner. If any step failed, it leaves a red final
// message the way ToolExecutor.Connect does on a connect failure;
// otherwise it clears silently.
func (p *ProgressSink) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed > 0 {
		p.s.FinalMSG = fmt.Sprintf("%d/%d steps failed\n", p.failed, p.total)
	}
	p.s.Stop()
}
