package dropbox

import (
	"context"
	"io"
	"net/url"
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

// FileFilter selects which datafile to retrieve.
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

// ListOptions searches the account for datafiles, one query per
// extension, all fetched through the shared pool. Files over the size
// cap are left out.
func (s *fileSource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	if field != "file" {
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}

	seeds := make([]string, 0, len(validFileTypes))
	for _, ext := range validFileTypes {
		seeds = append(seeds, apiBase+"/search/auto/?query=."+ext+"&include_membership=true")
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
		var files []struct {
			Path  string `json:"path"`
			Bytes int64  `json:"bytes"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &files); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected search response")
		}

		mu.Lock()
		defer mu.Unlock()
		for _, file := range files {
			if !hasValidExtension(file.Path) || file.Bytes >= maxFileBytes {
				continue
			}
			options = append(options, core.Option{
				Title: strings.TrimPrefix(file.Path, "/"),
				Value: file.Path,
			})
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return base.ShapeOptions(options), nil
}

// GetData streams the file's raw contents into sink.
func (s *fileSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, _, _ int, sink io.Writer) error {
	f, ok := filter.(*FileFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	uri := contentBase + "/files/auto/" + url.PathEscape(strings.TrimPrefix(f.File, "/"))
	rel := s.c.newRelay(account)
	return rel.Relay(ctx, clients.NewSignedRequest("GET", uri), sink, relay.Options{
		Deadline: s.c.Deps.Config.Fetch.RelayDeadline,
	})
}

func hasValidExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range validFileTypes {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}
