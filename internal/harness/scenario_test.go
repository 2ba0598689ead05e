package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One committed transaction"
users: [alice]
accounts: [a]
steps:
  - op: create
    user: alice
    label: t
    args: { type: mimo, commit: true }
assertions:
  - type: no_pending
    user: alice
    tx: t
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, []string{"alice"}, scenario.Users)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, OpCreate, scenario.Steps[0].Op)
	assert.Equal(t, "mimo", scenario.Steps[0].Args["type"])
	assert.Equal(t, true, scenario.Steps[0].Args["commit"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\nusers: [a]\nsteps: [{op: checkpoint, label: c}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "name is required",
		},
		{
			name:    "missing users",
			content: "name: n\ndescription: d\nsteps: [{op: checkpoint, label: c}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "users list is required",
		},
		{
			name:    "duplicate user",
			content: "name: n\ndescription: d\nusers: [a]\nreaders: [a]\nsteps: [{op: checkpoint, label: c}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "declared twice",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: explode, user: a}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "unknown op",
		},
		{
			name:    "unknown step user",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: z, label: t}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "unknown user",
		},
		{
			name:    "create without label",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "requires label",
		},
		{
			name:    "reference before label",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: commit, user: a, tx: t}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "not labelled by an earlier step",
		},
		{
			name:    "item op on transaction label",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a, label: t}, {op: item_remove, user: a, item: t}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "item \"t\" is not labelled",
		},
		{
			name:    "duplicate label",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a, label: t}, {op: checkpoint, label: t}]\nassertions: [{type: wip_count, user: a}]\n",
			want:    "already used",
		},
		{
			name:    "committed without expect",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a, label: t}]\nassertions: [{type: committed, user: a, tx: t}]\n",
			want:    "expect is required",
		},
		{
			name:    "listed with bad cursor",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a, label: t}]\nassertions: [{type: listed, user: a, cursor: t}]\n",
			want:    "not a checkpoint label",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nusers: [a]\nsteps: [{op: create, user: a, label: t}]\nassertions: [{type: vibes, user: a}]\n",
			want:    "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
