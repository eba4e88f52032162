package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizydrop/gallery/pkg/connector/base"
)

func TestJQLProjectsOnly(t *testing.T) {
	f := &IssuesFilter{Projects: base.MultiList{"VD", "OPS"}}
	assert.Equal(t, "project in (VD,OPS)", f.JQL())
}

func TestJQLAllClauses(t *testing.T) {
	f := &IssuesFilter{
		Projects:   base.MultiList{"VD"},
		IssueTypes: base.MultiList{"Bug", "Task"},
		States:     base.MultiList{"Open"},
		Created:    &base.DateRange{Min: "2015-01-01", Max: "2015-12-31"},
		Resolved:   &base.DateRange{Min: "2015-06-01"},
	}
	assert.Equal(t,
		"project in (VD) and issuetype in (Bug,Task) and (status in (Open)) "+
			"and created > 2015-01-01 and created < 2015-12-31 and resolved > 2015-06-01",
		f.JQL())
}

func TestIssuesFilterRequiresProjects(t *testing.T) {
	assert.Error(t, (&IssuesFilter{}).Validate())
	assert.NoError(t, (&IssuesFilter{Projects: base.MultiList{"VD"}}).Validate())
}

func TestIssuesFilterParsesCSVProjects(t *testing.T) {
	src := &issuesSource{}
	filter, err := src.ParseFilter([]byte(`{"projects":"VD,OPS","created":"2015-01-01"}`))
	require.NoError(t, err)

	f := filter.(*IssuesFilter)
	assert.Equal(t, base.MultiList{"VD", "OPS"}, f.Projects)
	assert.Equal(t, "2015-01-01", f.Created.Min)
}
