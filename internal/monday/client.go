package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/pkg/errors"
)

// ErrItemNotFound is returned when an items query comes back empty.
var ErrItemNotFound = errors.New("item not found")

// Observer is notified after every API call.
type Observer interface {
	ObserveRequest(op string, elapsed time.Duration, err error)
}

// Client is a monday.com GraphQL API client.
type Client struct {
	url        string
	token      string
	version    string
	httpClient *http.Client
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers an observer for API calls.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new API client from the given config.
func NewClient(cfg config.Config, opts ...Option) *Client {
	c := &Client{
		url:        strings.TrimRight(cfg.APIURL, "/"),
		token:      cfg.Token,
		version:    cfg.APIVersion,
		httpClient: newHTTPClient(cfg.Timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// GetItem fetches a single item with its name, board and every column value.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var data itemsData
	vars := map[string]any{"ids": []string{itemID}}
	if err := c.do(ctx, OpGetItem, getItemQuery, vars, &data); err != nil {
		return nil, errors.Wrapf(err, "fetching item %s", itemID)
	}
	if len(data.Items) == 0 {
		return nil, errors.Wrapf(ErrItemNotFound, "fetching item %s", itemID)
	}
	item := data.Items[0]
	item.index()
	return &item, nil
}

// GetItemColumns fetches a single item restricted to the given columns.
func (c *Client) GetItemColumns(ctx context.Context, itemID string, columnIDs []string) (*Item, error) {
	var data itemsData
	vars := map[string]any{"ids": []string{itemID}, "columns": columnIDs}
	if err := c.do(ctx, OpGetItemColumns, getItemColumnsQuery, vars, &data); err != nil {
		return nil, errors.Wrapf(err, "fetching columns of item %s", itemID)
	}
	if len(data.Items) == 0 {
		return nil, errors.Wrapf(ErrItemNotFound, "fetching columns of item %s", itemID)
	}
	item := data.Items[0]
	item.index()
	return &item, nil
}

// SearchItems returns the items on a board whose column equals value.
// Use the "name" pseudo-column to search by item name.
func (c *Client) SearchItems(ctx context.Context, boardID, columnID, value string) ([]ItemRef, error) {
	var data searchData
	vars := map[string]any{
		"board":  []string{boardID},
		"column": columnID,
		"value":  []string{value},
	}
	if err := c.do(ctx, OpSearchItems, searchItemsQuery, vars, &data); err != nil {
		return nil, errors.Wrapf(err, "searching board %s for %s=%q", boardID, columnID, value)
	}
	if len(data.Boards) == 0 {
		return nil, errors.Errorf("searching board %s: board not returned", boardID)
	}
	return data.Boards[0].ItemsPage.Items, nil
}

// ChangeColumnValues writes several column values on an existing item.
// values is encoded as the JSON column_values argument.
func (c *Client) ChangeColumnValues(ctx context.Context, boardID, itemID string, values any) (ID, error) {
	encoded, err := encodeValues(values)
	if err != nil {
		return "", err
	}
	var data changeData
	vars := map[string]any{"item": itemID, "board": boardID, "values": encoded}
	if err := c.do(ctx, OpUpdateItem, updateItemMutation, vars, &data); err != nil {
		return "", errors.Wrapf(err, "updating item %s", itemID)
	}
	if data.ChangeMultipleColumnValues == nil {
		return ID(itemID), nil
	}
	return data.ChangeMultipleColumnValues.ID, nil
}

// CreateItem creates an item on a board and returns its id.
func (c *Client) CreateItem(ctx context.Context, boardID, name string, values any) (ID, error) {
	encoded, err := encodeValues(values)
	if err != nil {
		return "", err
	}
	var data createData
	vars := map[string]any{"board": boardID, "name": name, "values": encoded}
	if err := c.do(ctx, OpCreateItem, createItemMutation, vars, &data); err != nil {
		return "", errors.Wrapf(err, "creating item %q on board %s", name, boardID)
	}
	if data.CreateItem == nil {
		return "", errors.Errorf("creating item %q on board %s: no item returned", name, boardID)
	}
	return data.CreateItem.ID, nil
}

func encodeValues(values any) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", errors.Wrap(err, "marshalling column values")
	}
	return string(b), nil
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) (err error) {
	if c.observer != nil {
		start := time.Now()
		defer func() { c.observer.ObserveRequest(op, time.Since(start), err) }()
	}

	data, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrap(err, "marshalling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "executing request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return errors.Errorf("API error: %s", strings.Join(msgs, "; "))
	}
	if envelope.ErrorMessage != "" {
		if envelope.ErrorCode != "" {
			return errors.Errorf("API error %s: %s", envelope.ErrorCode, envelope.ErrorMessage)
		}
		return errors.Errorf("API error: %s", envelope.ErrorMessage)
	}
	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return errors.New("API response has no data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrap(err, "decoding response data")
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.token)
	req.Header.Set("API-Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
