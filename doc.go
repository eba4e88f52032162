// Package gallery provides the Vizydrop application gallery connectors:
// a collection of SaaS integrations (GitHub, Trello, Jira, Targetprocess,
// Dropbox, Box, OneDrive, Google Sheets) that authenticate against the
// provider, enumerate filter options, and stream tabular records or raw
// file content back to the host.
//
// # Architecture
//
// Every connector is built from the same runtime pieces:
//
// 1. Signing: auth.Signer implementations cover OAuth2 bearer tokens
// (with single-flight refresh through auth.TokenGuard), OAuth1 request
// signing, HTTP basic credentials, and static query tokens.
//
// 2. Retrieval: fetch.PagedFetcher walks paginated provider APIs with a
// bounded worker pool, while relay.StreamingRelay forwards single large
// resources chunk by chunk without signing redirect hops.
//
// 3. Shaping: the schema package resolves provider responses into typed,
// ordered records and streams them as one JSON array.
//
// Connector packages under pkg/connector/sources register themselves with
// pkg/connector/registry from init; the host wires shared dependencies
// (HTTP client, token guard, configuration, logger) through core.Deps.
//
// # Quick Start
//
//	deps := &core.Deps{HTTPClient: client, TokenGuard: guard, Config: cfg, Logger: log}
//	c, err := registry.Create("github", deps)
//	if err != nil {
//	    return err
//	}
//	src, _ := c.Source("commits")
//	filter, _ := src.ParseFilter(rawFilter)
//	err = src.GetData(ctx, account, filter, 100, 0, os.Stdout)
//
// The cmd/gallery CLI exposes the same operations for local use.
package gallery
