package scenario_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/tickwatch/cmd/flushtrace/scenario"
	"github.com/delaneyj/tickwatch/scheduler"
)

// should replay each scenario into its recorded trace
func TestGolden(t *testing.T) {
	for _, name := range []string{"ordering", "recursion", "cascade"} {
		t.Run(name, func(t *testing.T) {
			sc, err := scenario.Load(filepath.Join("testdata", name+".yaml"))
			require.NoError(t, err)

			res, err := scenario.Run(sc)
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, res.RunID)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, name, []byte(res.String()))
		})
	}
}

// should let the caller override the scenario's recursion limit
func TestLimitOverride(t *testing.T) {
	sc, err := scenario.Load(filepath.Join("testdata", "recursion.yaml"))
	require.NoError(t, err)

	res, err := scenario.Run(sc, scenario.WithLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Limit)

	loops := 0
	for _, step := range res.Steps {
		if step.Kind == scheduler.EventJob && step.Job == "loop" {
			loops++
		}
	}
	assert.Equal(t, 2, loops)
}

// should reject malformed scenarios
func TestInvalidScenarios(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		err  error
	}{
		{
			name: "duplicate",
			yaml: "name: dup\njobs:\n  - {name: a}\npost:\n  - {name: a}\n",
			err:  scenario.ErrDuplicateJob,
		},
		{
			name: "unknown queue target",
			yaml: "name: q\njobs:\n  - {name: a, queue: [ghost]}\n",
			err:  scenario.ErrUnknownJob,
		},
		{
			name: "invalidate a callback",
			yaml: "name: inv\npre:\n  - {name: p}\ninvalidate: [p]\n",
			err:  scenario.ErrUnknownJob,
		},
		{
			name: "unnamed",
			yaml: "name: anon\njobs:\n  - {id: 1}\n",
			err:  scenario.ErrUnnamedJob,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := scenario.Parse([]byte(tc.yaml))
			require.NoError(t, err)
			_, err = scenario.Run(sc)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := scenario.Parse([]byte("jobs: [oops"))
	assert.Error(t, err)
	_, err = scenario.Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}
