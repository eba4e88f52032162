package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

func TestNormalizeNestedPath(t *testing.T) {
	s := Schema{
		{Name: "author", ResponseLoc: "commit-author-name", Kind: KindText},
	}

	raw := map[string]interface{}{
		"commit": map[string]interface{}{
			"author": map[string]interface{}{"name": "A"},
		},
	}

	record, err := s.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "A", record.Get("author"))
}

func TestNormalizeCollectionFlattening(t *testing.T) {
	s := Schema{
		{Name: "labels", ResponseLoc: "labels-name", Kind: KindText},
	}

	raw := map[string]interface{}{
		"labels": []interface{}{
			map[string]interface{}{"name": "bug"},
			map[string]interface{}{"name": "p1"},
		},
	}

	record, err := s.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "bug,p1", record.Get("labels"))
}

func TestNormalizeItemsWrapper(t *testing.T) {
	s := Schema{
		{Name: "teams", ResponseLoc: "AssignedTeams-Team-Name", Kind: KindText},
	}

	raw := map[string]interface{}{
		"AssignedTeams": map[string]interface{}{
			"Items": []interface{}{
				map[string]interface{}{"Team": map[string]interface{}{"Name": "Alpha"}},
				map[string]interface{}{"Team": map[string]interface{}{"Name": "Beta"}},
			},
		},
	}

	record, err := s.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Alpha,Beta", record.Get("teams"))
}

func TestNormalizeMissingPathYieldsNil(t *testing.T) {
	s := Schema{
		{Name: "assignee", ResponseLoc: "assignee-login", Kind: KindText},
	}

	record, err := s.Normalize(map[string]interface{}{"assignee": nil})
	require.NoError(t, err)
	assert.Nil(t, record.Get("assignee"))
}

func TestRecordMarshalsInSchemaOrder(t *testing.T) {
	s := Schema{
		{Name: "zeta", ResponseLoc: "zeta", Kind: KindText},
		{Name: "alpha", ResponseLoc: "alpha", Kind: KindText},
		{Name: "mid", ResponseLoc: "mid", Kind: KindText},
	}

	record, err := s.Normalize(map[string]interface{}{
		"zeta": "1", "alpha": "2", "mid": "3",
	})
	require.NoError(t, err)

	out, err := record.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":"2","mid":"3"}`, string(out))
}

func TestNormalizeCoercionFailureIsHardError(t *testing.T) {
	s := Schema{
		{Name: "count", ResponseLoc: "count", Kind: KindNumber},
	}

	_, err := s.Normalize(map[string]interface{}{"count": "not a number"})
	assert.Error(t, err)
}

func TestUnmarshalIntoNormalize(t *testing.T) {
	s := Schema{
		{Name: "sha", ResponseLoc: "sha", Kind: KindID},
		{Name: "date", ResponseLoc: "commit-committer-date", Kind: KindDateTime},
	}

	payload := []byte(`{"sha":"abc123","commit":{"committer":{"date":"2015-03-02T18:20:16Z"}}}`)
	var raw map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal(payload, &raw))

	record, err := s.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "abc123", record.Get("sha"))
	assert.Equal(t, "2015-03-02T18:20:16Z", record.Get("date"))
}
