package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/schema"
)

func nodeTable(origin string, refs ...string) Table {
	t := Table{Origin: origin}
	for _, ref := range refs {
		t.Doc.Fields = append(t.Doc.Fields, schema.FieldRow{Code: ref, Type: "NODE", Ref: ref})
	}
	return t
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	cat := &Catalog{Databases: []Database{{
		Name:   "PK1",
		Tables: []Table{nodeTable("A", "B", "C"), nodeTable("B", "C"), nodeTable("C")},
	}}}
	assert.Empty(t, AnalyzeCycles(cat))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cat := &Catalog{Databases: []Database{{
		Name:   "PK1",
		Tables: []Table{nodeTable("A", "A")},
	}}}

	warnings := AnalyzeCycles(cat)
	require.Len(t, warnings, 1)
	assert.Equal(t, "PK1", warnings[0].Database)
	assert.Equal(t, []string{"A", "A"}, warnings[0].Path)
}

func TestAnalyzeCycles_ThroughAliases(t *testing.T) {
	cat := &Catalog{
		Aliases: map[string]string{"XA": "{DB}_A", "XB": "{DB}_B", "XC": "{DB}_C"},
		Databases: []Database{{
			Name: "PK1",
			Tables: []Table{
				nodeTable("{DB}_A", "XB"),
				nodeTable("{DB}_B", "XC"),
				nodeTable("{DB}_C", "XA"),
			},
		}},
	}

	warnings := AnalyzeCycles(cat)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"{DB}_A", "{DB}_B", "{DB}_C", "{DB}_A"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "{DB}_A -> {DB}_B -> {DB}_C -> {DB}_A")
}

func TestAnalyzeCycles_PerDatabase(t *testing.T) {
	cat := &Catalog{Databases: []Database{
		{Name: "PK1", Tables: []Table{nodeTable("A", "B")}},
		{Name: "PK2", Tables: []Table{nodeTable("B", "A")}},
	}}
	assert.Empty(t, AnalyzeCycles(cat))
}
