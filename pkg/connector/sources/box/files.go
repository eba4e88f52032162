package box

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/connector/base"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/fetch"
	jsonpool "github.com/vizydrop/gallery/pkg/json"
	"github.com/vizydrop/gallery/pkg/relay"
	"github.com/vizydrop/gallery/pkg/schema"
)

// validFileTypes are the datafile extensions offered as options.
var validFileTypes = []string{"txt", "tsv", "csv", "dat", "xls", "xlsx"}

// maxFileBytes caps the size of files offered as options.
const maxFileBytes = 10 * 1000 * 1000

// FileFilter selects which datafile to retrieve, by file id.
type FileFilter struct {
	File string `json:"file"`
}

func (f *FileFilter) Validate() error {
	if f.File == "" {
		return errors.New(errors.ErrorTypeValidation, "required parameter file missing")
	}
	return nil
}

// fileSource relays the raw contents of one datafile.
type fileSource struct {
	c *Connector
}

func (s *fileSource) Name() string          { return "file" }
func (s *fileSource) FriendlyName() string  { return "File" }
func (s *fileSource) Schema() schema.Schema { return nil }

func (s *fileSource) ParseFilter(raw []byte) (core.Filter, error) {
	f := &FileFilter{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := jsonpool.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed filter")
	}
	return f, nil
}

type searchEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PathCollection struct {
		Entries []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"entries"`
	} `json:"path_collection"`
}

// ListOptions searches the account for datafiles, one query per
// extension. The server filters by extension and size; entries are
// titled with their full folder path. Duplicate hits across queries
// collapse to one option.
func (s *fileSource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	if field != "file" {
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}

	params := url.Values{}
	params.Set("type", "file")
	params.Set("limit", "200")
	params.Set("size_range", ","+strconv.Itoa(maxFileBytes))
	params.Set("file_extensions", strings.Join(validFileTypes, ","))

	seeds := make([]string, 0, len(validFileTypes))
	for _, ext := range validFileTypes {
		seeds = append(seeds, apiBase+"/search?query=."+ext+"&"+params.Encode())
	}

	var mu sync.Mutex
	var options []core.Option

	fetcher := s.c.newFetcher(account)
	_, err := fetcher.FetchAll(ctx, seeds, fetch.Options{
		Deadline: s.c.Deps.Config.Fetch.Deadline,
	}, func(ctx context.Context, uri string, resp *clients.Response) ([]string, error) {
		if !resp.IsSuccess() {
			return nil, errors.NewProviderError(resp.StatusCode, "file search failed")
		}
		var page struct {
			Entries []searchEntry `json:"entries"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected search response")
		}

		mu.Lock()
		defer mu.Unlock()
		for _, file := range page.Entries {
			if !hasValidExtension(file.Name) {
				continue
			}
			options = append(options, core.Option{
				Title: entryTitle(file),
				Value: file.ID,
			})
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return base.ShapeOptions(options), nil
}

// entryTitle joins the entry's folder path with its name, skipping the
// synthetic root folder the API reports with id 0.
func entryTitle(file searchEntry) string {
	parts := make([]string, 0, len(file.PathCollection.Entries)+1)
	for _, folder := range file.PathCollection.Entries {
		if folder.ID == "0" {
			continue
		}
		parts = append(parts, folder.Name)
	}
	parts = append(parts, file.Name)
	return strings.TrimPrefix(strings.Join(parts, "/"), "/")
}

// GetData streams the file's raw contents into sink. The content
// endpoint answers with a redirect to the download host; the relay
// follows it and forwards only the terminal response's body.
func (s *fileSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, _, _ int, sink io.Writer) error {
	f, ok := filter.(*FileFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	uri := apiBase + "/files/" + url.PathEscape(strings.TrimPrefix(f.File, "/")) + "/content"
	rel := s.c.newRelay(account)
	return rel.Relay(ctx, clients.NewSignedRequest("GET", uri), sink, relay.Options{
		Deadline: s.c.Deps.Config.Fetch.RelayDeadline,
	})
}

func hasValidExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range validFileTypes {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}
