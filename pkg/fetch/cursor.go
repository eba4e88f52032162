package fetch

import (
	"strings"

	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

// NextFromLinkHeader extracts the rel="next" target from an RFC 5988 Link
// header. Returns "" when there is no next page.
func NextFromLinkHeader(header string) string {
	if header == "" {
		return ""
	}

	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}

		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, param := range sections[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target
			}
		}
	}
	return ""
}

// NextFromJSONField extracts a next-page URI from a top-level field of a
// JSON object body ("@odata.nextLink", "Next"). Returns "" when the field
// is absent or not a string.
func NextFromJSONField(body []byte, field string) string {
	var page map[string]interface{}
	if err := jsonpool.Unmarshal(body, &page); err != nil {
		return ""
	}
	next, _ := page[field].(string)
	return next
}
