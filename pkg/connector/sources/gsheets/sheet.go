package gsheets

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/metrics"
	"github.com/vizydrop/gallery/pkg/schema"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`([A-Za-z0-9\-_]{18,})`)
	worksheetIDPattern   = regexp.MustCompile(`/(\w+)$`)
)

// SheetFilter selects which worksheet to read.
type SheetFilter struct {
	Spreadsheet string `json:"spreadsheet"`
	Worksheet   string `json:"worksheet"`
}

func (f *SheetFilter) Validate() error {
	if f.Spreadsheet == "" {
		return errors.New(errors.ErrorTypeValidation, "required parameter spreadsheet missing")
	}
	if f.Worksheet == "" {
		return errors.New(errors.ErrorTypeValidation, "required parameter worksheet missing")
	}
	return nil
}

// feedText is the feeds API's {"$t": "..."} wrapper.
type feedText struct {
	Value string `json:"$t"`
}

type feedEntry struct {
	ID    feedText `json:"id"`
	Title feedText `json:"title"`
}

// sheetSource reads worksheet rows through the list feed. Columns are
// whatever the sheet's header row declares, so the schema is dynamic.
type sheetSource struct {
	c *Connector
}

func (s *sheetSource) Name() string          { return "sheet" }
func (s *sheetSource) FriendlyName() string  { return "Sheet" }
func (s *sheetSource) Schema() schema.Schema { return nil }

func (s *sheetSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &SheetFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

func (s *sheetSource) ListOptions(ctx context.Context, account *auth.Account, field string, partial core.Filter) ([]core.Option, error) {
	switch field {
	case "spreadsheet":
		return s.listFeedOptions(ctx, account, feedsBase+"/spreadsheets/private/full", spreadsheetIDPattern)
	case "worksheet":
		f, _ := partial.(*SheetFilter)
		if f == nil || f.Spreadsheet == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "spreadsheet ID required to gather list")
		}
		return s.listFeedOptions(ctx, account, feedsBase+"/worksheets/"+f.Spreadsheet+"/private/full", worksheetIDPattern)
	default:
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}
}

// listFeedOptions reads one feed and turns its entries into options,
// extracting the entry id from the feed's self URL.
func (s *sheetSource) listFeedOptions(ctx context.Context, account *auth.Account, uri string, idPattern *regexp.Regexp) ([]core.Option, error) {
	resp, err := s.fetchOne(ctx, account, uri)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, errors.NewProviderError(resp.StatusCode, "failed to read feed")
	}

	var parsed struct {
		Feed struct {
			Entry []feedEntry `json:"entry"`
		} `json:"feed"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected feed response")
	}

	options := make([]core.Option, 0, len(parsed.Feed.Entry))
	for _, entry := range parsed.Feed.Entry {
		m := idPattern.FindStringSubmatch(entry.ID.Value)
		if m == nil {
			continue
		}
		options = append(options, core.Option{Title: entry.Title.Value, Value: m[1]})
	}
	return base.ShapeOptions(options), nil
}

// GetData reads the worksheet's list feed and emits one record per row.
// Column keys come from the feed's gsx$ namespace, one per header cell.
func (s *sheetSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, limit, skip int, sink io.Writer) error {
	f, ok := filter.(*SheetFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	uri := feedsBase + "/list/" + f.Spreadsheet + "/" + f.Worksheet + "/private/full"
	resp, err := s.fetchOne(ctx, account, uri)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return errors.NewProviderError(resp.StatusCode, "failed to read worksheet")
	}

	var parsed struct {
		Feed struct {
			Entry []map[string]feedText `json:"entry"`
		} `json:"feed"`
	}
	if err := jsonpool.Unmarshal(resp.Body, &parsed); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "unexpected worksheet response")
	}

	enc, err := jsonpool.NewStreamingEncoder(sink)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to open output stream")
	}
	window := base.NewWindow(limit, skip)
	for _, row := range parsed.Feed.Entry {
		if !window.Admit() {
			if window.Full() {
				break
			}
			continue
		}
		record := make(map[string]string, len(row))
		for key, cell := range row {
			if strings.HasPrefix(key, "gsx$") {
				record[strings.TrimPrefix(key, "gsx$")] = cell.Value
			}
		}
		if err := enc.Encode(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write record")
		}
	}
	metrics.RecordsEmitted.WithLabelValues(s.c.Name(), s.Name()).Add(float64(enc.Count()))
	return enc.Close()
}

func (s *sheetSource) fetchOne(ctx context.Context, account *auth.Account, uri string) (*clients.Response, error) {
	signed, err := s.c.signer.Sign(ctx, account, clients.NewSignedRequest("GET", uri))
	if err != nil {
		return nil, err
	}
	return s.c.Deps.HTTPClient.Fetch(ctx, signed)
}
