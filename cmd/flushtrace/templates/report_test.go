package templates_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/delaneyj/tickwatch/cmd/flushtrace/scenario"
	"github.com/delaneyj/tickwatch/cmd/flushtrace/templates"
	"github.com/delaneyj/tickwatch/scheduler"
)

// should render the trace and stats as markdown tables
func TestMarkdown(t *testing.T) {
	id := uuid.New()
	out := templates.Markdown(&scenario.Result{
		RunID:    id,
		Scenario: "demo",
		Limit:    100,
		Steps: []scenario.Step{
			{Pass: 1, Kind: scheduler.EventFlushStart},
			{Pass: 1, Kind: scheduler.EventJob, Job: "render"},
		},
		Stats: scheduler.Stats{Flushes: 1, Passes: 1, Jobs: 1},
	})

	assert.Contains(t, out, "# demo")
	assert.Contains(t, out, "Run `"+id.String()+"`, recursion limit 100.")
	assert.Contains(t, out, "| 1 | job | render |")
	assert.Contains(t, out, "| 1 | 1 | 1 | 0 | 0 | 0 | 0 |")
}
