// Package sharepoint creates SharePoint lists and inserts list items through Microsoft Graph.
package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/config"
)

// MaxBatchRequests is the Graph limit on sub-requests per $batch call.
const MaxBatchRequests = 20

// List is a SharePoint list prepared to receive the rows of one source table.
type List struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	WebURL string `json:"web_url,omitempty" yaml:"web_url,omitempty"`
	// Columns maps source column names to SharePoint internal names.
	Columns map[string]string `json:"columns" yaml:"columns"`
	Created bool              `json:"created" yaml:"created"`
}

// Item is one list item. Fields are keyed by source column name.
type Item struct {
	Title  string
	Fields map[string]any
}

// ItemFailure is a sub-request of a batch that Graph rejected.
type ItemFailure struct {
	Index int
	Err   error
}

// InsertResult summarizes one InsertItems call.
type InsertResult struct {
	Inserted int
	Failures []ItemFailure
	// Processed counts the leading items Graph answered for; items after it were never sent.
	Processed int
}

type Option func(*Connector)

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) { c.graph.http = client }
}

// WithGraphURL points the connector at another Graph endpoint.
func WithGraphURL(graphURL string) Option {
	return func(c *Connector) { c.graph.baseURL = strings.TrimRight(graphURL, "/") }
}

// Connector talks to a single SharePoint site.
type Connector struct {
	cfg    config.SharePoint
	graph  *graphClient
	siteID string
}

// NewConnector builds a Connector for cfg.SiteURL. Call Authenticate before anything else.
func NewConnector(cfg config.SharePoint, tokens TokenProvider, opts ...Option) *Connector {
	graphURL := DefaultGraphURL
	if cfg.GraphURL != "" {
		graphURL = strings.TrimRight(cfg.GraphURL, "/")
	}

	c := &Connector{
		cfg: cfg,
		graph: &graphClient{
			http:    &http.Client{Timeout: 60 * time.Second},
			baseURL: graphURL,
			tokens:  tokens,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SiteID returns the Graph site id resolved by Authenticate.
func (c *Connector) SiteID() string { return c.siteID }

// Authenticate acquires a token and resolves the configured site.
func (c *Connector) Authenticate(ctx context.Context) error {
	if _, err := c.graph.tokens.Token(ctx); err != nil {
		return err
	}

	path := "/sites/" + c.cfg.SiteHost()
	if sitePath := c.cfg.SitePath(); sitePath != "" {
		path += ":" + sitePath
	}

	var site struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	if err := c.graph.do(ctx, http.MethodGet, path, nil, &site); err != nil {
		return fmt.Errorf("failed to resolve site %s: %w", c.cfg.SiteURL, err)
	}

	c.siteID = site.ID
	log.Info("authenticated to SharePoint", "site", site.WebURL)
	return nil
}

type graphList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

// GetList looks a list up by display name.
func (c *Connector) GetList(ctx context.Context, name string) (List, error) {
	if c.siteID == "" {
		return List{}, ErrNotAuthenticated
	}

	var found graphList
	err := c.graph.do(ctx, http.MethodGet, c.listsPath()+"/"+url.PathEscape(name), nil, &found)

	var graphErr *GraphError
	if errors.As(err, &graphErr) && graphErr.StatusCode == http.StatusNotFound {
		return List{}, fmt.Errorf("%w: %s", ErrListNotFound, name)
	}
	if err != nil {
		return List{}, err
	}

	return List{ID: found.ID, Name: found.DisplayName, WebURL: found.WebURL}, nil
}

// CreateList returns the list named name, creating it with one column per source column
// when it does not exist yet.
func (c *Connector) CreateList(ctx context.Context, name string, columns []access.Column) (List, error) {
	mapping := ColumnMapping(columns)

	existing, err := c.GetList(ctx, name)
	if err == nil {
		log.Info("list already exists", "list", name)
		existing.Columns = mapping
		return existing, nil
	}
	if !errors.Is(err, ErrListNotFound) {
		return List{}, err
	}

	definitions := lo.FilterMap(columns, func(column access.Column, _ int) (columnDefinition, bool) {
		internal, ok := mapping[column.Name]
		return newColumnDefinition(column, internal), ok
	})

	request := map[string]any{
		"displayName": name,
		"columns":     definitions,
		"list":        map[string]any{"template": "genericList"},
	}

	var created graphList
	if err := c.graph.do(ctx, http.MethodPost, c.listsPath(), request, &created); err != nil {
		return List{}, fmt.Errorf("failed to create list %s: %w", name, err)
	}

	log.Info("created list", "list", name, "columns", len(definitions))
	return List{ID: created.ID, Name: created.DisplayName, WebURL: created.WebURL, Columns: mapping, Created: true}, nil
}

type batchRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

type batchResponse struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// InsertItems adds items to list using JSON batching. Whole-batch failures are returned as the error;
// rejected sub-requests are reported in InsertResult.Failures with the item's index in items.
func (c *Connector) InsertItems(ctx context.Context, list List, items []Item) (InsertResult, error) {
	if c.siteID == "" {
		return InsertResult{}, ErrNotAuthenticated
	}

	var result InsertResult
	itemsURL := c.listsPath() + "/" + list.ID + "/items"

	for n, chunk := range lo.Chunk(items, MaxBatchRequests) {
		offset := n * MaxBatchRequests
		requests := lo.Map(chunk, func(item Item, i int) batchRequest {
			return batchRequest{
				ID:      strconv.Itoa(offset + i),
				Method:  http.MethodPost,
				URL:     itemsURL,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    map[string]any{"fields": itemFields(list, item)},
			}
		})

		var response struct {
			Responses []batchResponse `json:"responses"`
		}
		if err := c.graph.do(ctx, http.MethodPost, "/$batch", map[string]any{"requests": requests}, &response); err != nil {
			return result, fmt.Errorf("failed to insert into %s: %w", list.Name, err)
		}
		result.Processed += len(chunk)

		answered := make(map[int]bool, len(chunk))
		for _, sub := range response.Responses {
			index, err := strconv.Atoi(sub.ID)
			if err != nil || index < offset || index >= offset+len(chunk) || answered[index] {
				log.Debug("ignoring unexpected batch response", "list", list.Name, "id", sub.ID)
				continue
			}
			answered[index] = true

			if sub.Status >= 200 && sub.Status <= 299 {
				result.Inserted++
				continue
			}
			header := func(key string) string {
				for k, v := range sub.Headers {
					if strings.EqualFold(k, key) {
						return v
					}
				}
				return ""
			}
			result.Failures = append(result.Failures, ItemFailure{Index: index, Err: newGraphError(sub.Status, header, sub.Body)})
		}

		for i := range chunk {
			if !answered[offset+i] {
				result.Failures = append(result.Failures, ItemFailure{Index: offset + i, Err: errMissingResponse(offset + i)})
			}
		}
	}

	log.Debug("inserted items", "list", list.Name, "inserted", result.Inserted, "failed", len(result.Failures))
	return result, nil
}

// errMissingResponse marks a sub-request the batch reply did not answer. It is retryable.
func errMissingResponse(index int) *GraphError {
	return &GraphError{
		StatusCode: http.StatusBadGateway,
		Code:       "missingResponse",
		Message:    fmt.Sprintf("batch response has no answer for sub-request %d", index),
	}
}

func (c *Connector) listsPath() string {
	return "/sites/" + c.siteID + "/lists"
}

func itemFields(list List, item Item) map[string]any {
	fields := map[string]any{"Title": item.Title}
	for column, value := range item.Fields {
		internal, ok := list.Columns[column]
		if !ok || value == nil {
			continue
		}
		fields[internal] = value
	}
	return fields
}
