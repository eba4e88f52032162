package targetprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/schema"
)

func TestWhereClauseEmpty(t *testing.T) {
	assert.Empty(t, (&AssignablesFilter{}).WhereClause())
}

func TestWhereClauseDatesAndIDs(t *testing.T) {
	f := &AssignablesFilter{
		Projects: base.MultiList{"101"},
		Teams:    base.MultiList{"7", "8"},
		Opened:   &base.DateRange{Min: "2015-01-01"},
		Closed:   &base.DateRange{Max: "2015-12-31"},
	}

	where := f.WhereClause()
	assert.Contains(t, where, "(CreateDate gte '2015-01-01')")
	assert.Contains(t, where, "(EndDate is not null)")
	assert.Contains(t, where, "(EndDate lte '2015-12-31')")
	assert.Contains(t, where, "(Project.Id eq 101)")
	assert.Contains(t, where, "(Team.Id in (7,8))")
	assert.NotContains(t, where, "StartDate")
}

func TestWhereClauseStateFlags(t *testing.T) {
	f := &AssignablesFilter{IsFinal: true, IsInitial: true}
	where := f.WhereClause()
	assert.Contains(t, where, "(EntityState.IsFinal eq 'true')")
	assert.Contains(t, where, "(EntityState.IsInitial eq 'true')")
	assert.Equal(t, 2, strings.Count(where, " and ")+1)
}

func TestEscapeNext(t *testing.T) {
	assert.Equal(t,
		"/api/v1/Bugs?where=(CreateDate+gte+'2015-01-01')&skip=25",
		escapeNext("/api/v1/Bugs?where=(CreateDate gte '2015-01-01')&skip=25"))
}

func TestAPIIncludes(t *testing.T) {
	s := schema.Schema{
		{Name: "Id", ResponseLoc: "Id", Kind: schema.KindID},
		{Name: "Project", ResponseLoc: "Project-Name", Kind: schema.KindText},
		{Name: "Assignments", ResponseLoc: "Assignments-GeneralUser-LastName", Kind: schema.KindText},
	}
	assert.Equal(t, "[Id,Project[Name],Assignments[GeneralUser[LastName]]]", apiIncludes(s))
}

func TestEntityDefsShareGeneralSchema(t *testing.T) {
	for _, def := range entityDefs {
		fields := make(map[string]bool, len(def.schema))
		for _, f := range def.schema {
			fields[f.Name] = true
		}
		for _, want := range []string{"Id", "Name", "Project", "EntityState", "Effort"} {
			assert.True(t, fields[want], "%s schema missing %s", def.name, want)
		}
	}
}
