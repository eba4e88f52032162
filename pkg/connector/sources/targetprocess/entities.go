package targetprocess

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/schema"
)

// generalSchema covers every entity kind.
var generalSchema = schema.Schema{
	{Name: "Id", ResponseLoc: "Id", Kind: schema.KindID},
	{Name: "Name", ResponseLoc: "Name", Kind: schema.KindText},
	{Name: "StartDate", ResponseLoc: "StartDate", Kind: schema.KindDate},
	{Name: "EndDate", ResponseLoc: "EndDate", Kind: schema.KindDate},
	{Name: "CreateDate", ResponseLoc: "CreateDate", Kind: schema.KindDate},
	{Name: "Tags", ResponseLoc: "Tags", Kind: schema.KindText},
	{Name: "Project", ResponseLoc: "Project-Name", Kind: schema.KindText},
}

// assignableSchema extends the general schema with effort and assignment
// fields shared by all assignable entities.
var assignableSchema = append(append(schema.Schema{}, generalSchema...), schema.Schema{
	{Name: "Effort", ResponseLoc: "Effort", Kind: schema.KindDecimal},
	{Name: "EffortCompleted", ResponseLoc: "EffortCompleted", Kind: schema.KindDecimal},
	{Name: "EffortToDo", ResponseLoc: "EffortToDo", Kind: schema.KindDecimal},
	{Name: "Progress", ResponseLoc: "Progress", Kind: schema.KindDecimal},
	{Name: "TimeSpent", ResponseLoc: "TimeSpent", Kind: schema.KindDecimal},
	{Name: "TimeRemain", ResponseLoc: "TimeRemain", Kind: schema.KindDecimal},
	{Name: "PlannedStartDate", ResponseLoc: "PlannedStartDate", Kind: schema.KindDate},
	{Name: "PlannedEndDate", ResponseLoc: "PlannedEndDate", Kind: schema.KindDate},
	{Name: "Assignments", ResponseLoc: "Assignments-GeneralUser-LastName", Kind: schema.KindText},
	{Name: "LeadTime", ResponseLoc: "LeadTime", Kind: schema.KindNumber},
	{Name: "CycleTime", ResponseLoc: "CycleTime", Kind: schema.KindNumber},
	{Name: "ForecastEndDate", ResponseLoc: "ForecastEndDate", Kind: schema.KindDate},
	{Name: "Iteration", ResponseLoc: "Iteration-Name", Kind: schema.KindText},
	{Name: "TeamIteration", ResponseLoc: "TeamIteration-Name", Kind: schema.KindText},
	{Name: "Release", ResponseLoc: "Release-Name", Kind: schema.KindText},
	{Name: "EntityState", ResponseLoc: "EntityState-Name", Kind: schema.KindText},
	{Name: "Priority", ResponseLoc: "Priority-Name", Kind: schema.KindText},
	{Name: "Teams", ResponseLoc: "AssignedTeams-Team-Name", Kind: schema.KindText},
}...)

// withFields appends per-entity shim fields to the assignable schema.
func withFields(extra ...schema.Field) schema.Schema {
	return append(append(schema.Schema{}, assignableSchema...), extra...)
}

// epicsSchema mirrors the assignable schema without the iteration
// fields; epics are not time-boxed into iterations.
var epicsSchema = func() schema.Schema {
	out := make(schema.Schema, 0, len(assignableSchema))
	for _, f := range assignableSchema {
		if f.Name == "Iteration" || f.Name == "TeamIteration" {
			continue
		}
		out = append(out, f)
	}
	return out
}()

// entityDef describes one entity source.
type entityDef struct {
	name     string
	friendly string
	apiCall  string
	schema   schema.Schema
}

var entityDefs = []entityDef{
	{"assignables", "All Entities", "Assignables", withFields(
		schema.Field{Name: "EntityType", ResponseLoc: "EntityType-Name", Kind: schema.KindText},
	)},
	{"userstories", "User Stories", "UserStories", withFields(
		schema.Field{Name: "Feature", ResponseLoc: "Feature-Name", Kind: schema.KindText},
	)},
	{"bugs", "Bugs", "Bugs", withFields(
		schema.Field{Name: "Severity", ResponseLoc: "Severity-Name", Kind: schema.KindText},
		schema.Field{Name: "UserStory", ResponseLoc: "UserStory-Name", Kind: schema.KindText},
		schema.Field{Name: "Feature", ResponseLoc: "Feature-Name", Kind: schema.KindText},
	)},
	{"requests", "Requests", "Requests", withFields()},
	{"features", "Features", "Features", withFields(
		schema.Field{Name: "Epic", ResponseLoc: "Epic-Name", Kind: schema.KindText},
	)},
	{"epics", "Epics", "Epics", epicsSchema},
	{"tasks", "Tasks", "Tasks", withFields()},
}

// apiIncludes renders the include clause from the schema: the hyphen path
// x-y-z becomes the API's x[y[z]] form.
func apiIncludes(s schema.Schema) string {
	includes := make([]string, 0, len(s))
	for _, field := range s {
		pieces := strings.Split(field.ResponseLoc, "-")
		includes = append(includes, strings.Join(pieces, "[")+strings.Repeat("]", len(pieces)-1))
	}
	return "[" + strings.Join(includes, ",") + "]"
}

// entitySource retrieves one entity collection.
type entitySource struct {
	c   *Connector
	def entityDef
}

func newEntitySource(c *Connector, def entityDef) *entitySource {
	return &entitySource{c: c, def: def}
}

func (s *entitySource) Name() string          { return s.def.name }
func (s *entitySource) FriendlyName() string  { return s.def.friendly }
func (s *entitySource) Schema() schema.Schema { return s.def.schema }

func (s *entitySource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &AssignablesFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *entitySource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	switch field {
	case "projects":
		return listEntityOptions(ctx, s.c, account, "Projects")
	case "teams":
		return listEntityOptions(ctx, s.c, account, "Teams")
	default:
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
}

// GetData walks the collection's Next-cursor chain. Reports that are
// still being computed come back as 202 and are retried with a fixed
// delay. Skip and take map directly onto the API's paging parameters.
func (s *entitySource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*AssignablesFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	cfg := s.c.Deps.Config.Fetch
	rel := s.c.Deps.Config.Reliability

	take := cfg.PageSize
	if limit > 0 && limit < take {
		take = limit
	}

	params := url.Values{}
	if where := f.WhereClause(); where != "" {
		params.Set("where", where)
	}
	if skip > 0 {
		params.Set("skip", strconv.Itoa(skip))
	}
	params.Set("take", strconv.Itoa(take))
	params.Set("include", apiIncludes(s.def.schema))

	writer, err := schema.NewStreamWriter(sink, s.def.schema, s.c.Name(), s.Name())
	if err != nil {
		return err
	}

	window := base.NewWindow(limit, 0)
	fetcher := s.c.newFetcher(account)
	seed := apiURL(account, "/"+s.def.apiCall) + "?" + params.Encode()

	_, err = fetcher.FollowChain(ctx, seed, fetch.Options{
		Deadline: cfg.Deadline,
		BuildRequest: func(uri string) *clients.SignedRequest {
			return clients.NewSignedRequest("GET", uri)
		},
	}, func(ctx context.Context, uri string, resp *clients.Response) (string, bool, error) {
		if resp.StatusCode == 202 {
			retried, err := fetch.RetryPending(ctx, rel.PendingRetries, rel.PendingDelay, func(ctx context.Context) (*clients.Response, error) {
				signed, err := s.c.signer.Sign(ctx, account, clients.NewSignedRequest("GET", uri))
				if err != nil {
					return nil, err
				}
				return s.c.Deps.HTTPClient.Fetch(ctx, signed)
			})
			if err != nil {
				return "", false, err
			}
			resp = retried
		}
		if !resp.IsSuccess() {
			return "", false, errors.NewProviderError(resp.StatusCode, "failed to fetch "+s.def.apiCall)
		}

		var page struct {
			Next  string                   `json:"Next"`
			Items []map[string]interface{} `json:"Items"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return "", false, errors.Wrap(err, errors.ErrorTypeData, "unexpected "+s.def.apiCall+" response")
		}

		for _, item := range page.Items {
			if !window.Admit() {
				if window.Full() {
					return "", true, nil
				}
				continue
			}
			if err := writer.Write(item); err != nil {
				return "", false, err
			}
		}

		if page.Next == "" {
			return "", false, nil
		}
		return escapeNext(page.Next), false, nil
	})
	if err != nil {
		return err
	}

	return writer.Close()
}
