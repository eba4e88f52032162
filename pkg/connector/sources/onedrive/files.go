package onedrive

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

// FileFilter selects which datafile to retrieve, by item id.
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

// ListOptions searches the drive for datafiles, one query per extension,
// following @odata.nextLink continuations through the shared pool.
func (s *fileSource) ListOptions(ctx context.Context, account *auth.Account, field string, _ core.Filter) ([]core.Option, error) {
	if field != "file" {
		return nil, base.ErrUnknownOptionField(s.Name(), field)
	}

	seeds := make([]string, 0, len(validFileTypes))
	for _, ext := range validFileTypes {
		seeds = append(seeds, apiBase+"/drive/root/view.search?top=1000&select=parentReference,name,id,size&q=."+ext)
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
			NextLink string `json:"@odata.nextLink"`
			Value    []struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				ParentReference struct {
					Path string `json:"path"`
				} `json:"parentReference"`
			} `json:"value"`
		}
		if err := jsonpool.Unmarshal(resp.Body, &page); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "unexpected search response")
		}

		mu.Lock()
		for _, file := range page.Value {
			if !hasValidExtension(file.Name) {
				continue
			}
			options = append(options, core.Option{
				Title: entryTitle(file.ParentReference.Path, file.Name),
				Value: file.ID,
			})
		}
		mu.Unlock()

		if page.NextLink != "" {
			return []string{page.NextLink}, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return base.ShapeOptions(options), nil
}

// entryTitle strips the "/drive/root:" prefix the API puts in front of
// the parent path and joins it with the file name.
func entryTitle(parentPath, name string) string {
	if idx := strings.Index(parentPath, ":"); idx >= 0 {
		parentPath = parentPath[idx+1:]
	}
	parentPath = strings.TrimPrefix(parentPath, "/")
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// GetData streams the file's raw contents into sink. The content
// endpoint redirects to the download host; the relay follows it and
// forwards only the terminal response's body.
func (s *fileSource) GetData(ctx context.Context, account *auth.Account, filter core.Filter, _, _ int, sink io.Writer) error {
	f, ok := filter.(*FileFilter)
	if !ok {
		return errors.New(errors.ErrorTypeValidation, "unexpected filter type")
	}
	if err := f.Validate(); err != nil {
		return err
	}

	uri := apiBase + "/drive/items/" + url.PathEscape(f.File) + "/content"
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
