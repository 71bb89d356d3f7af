package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"ontology", "document", "ingest", "graph"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestKindFromString(t *testing.T) {
	cases := map[string]kg.EntityKind{
		"substance":   kg.KindSubstance,
		"Substances":  kg.KindSubstance,
		"container":   kg.KindContainer,
		"test":        kg.KindSafetyTest,
		"assessments": kg.KindAssessment,
		"location":    kg.KindLocation,
	}
	for in, want := range cases {
		got, err := kindFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := kindFromString("widget")
	assert.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(
		[]string{"ID", "Name"},
		[][]string{
			{"1", "Sulfuric Acid"},
			{"2", "Acetone"},
		},
	)
	assert.Contains(t, out, "ID  Name")
	assert.Contains(t, out, "--  -------------")
	assert.Contains(t, out, "1   Sulfuric Acid")
	assert.Contains(t, out, "2   Acetone")
}

func TestFormatTableEmptyHeaders(t *testing.T) {
	assert.Equal(t, "", FormatTable(nil, nil))
}

func TestFormatTableRaggedRow(t *testing.T) {
	out := FormatTable([]string{"A", "B"}, [][]string{{"only"}})
	assert.Contains(t, out, "only")
}
