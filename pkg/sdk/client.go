// Package sdk is the Go client for the lattice admin HTTP API. It decodes
// responses into the same entity models the server serves, so a cube read
// through the SDK looks exactly like a cube read in process.
package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/gear6io/lattice/server/cube"
)

var (
	// ErrNotFound is returned when the named entity does not exist.
	ErrNotFound = errors.New("lattice: entity does not exist")
	// ErrWrongKind is returned when the entity exists but is not the
	// requested kind, e.g. a cube fetched through GetFact.
	ErrWrongKind = errors.New("lattice: entity is not the requested kind")
)

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// Address is the host:port of the admin API.
	Address string
	// Timeout bounds each request. Zero means the default of 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
	// Logger receives request-level debug logging. Nil means no logging.
	Logger *zap.Logger
}

// ParseDSN reads a lattice://host:port[?timeout=30s] DSN into options.
func ParseDSN(dsn string) (*Options, error) {
	if !strings.HasPrefix(dsn, "lattice://") {
		return nil, errors.New("invalid DSN format, must start with lattice://")
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse DSN")
	}
	if u.Host == "" {
		return nil, errors.New("invalid DSN format")
	}

	opt := &Options{Address: u.Host}
	if timeout := u.Query().Get("timeout"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, errors.Wrap(err, "parse query parameters")
		}
		opt.Timeout = d
	}
	return opt, nil
}

// Client talks to one lattice server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a client from options.
func NewClient(opt *Options) (*Client, error) {
	if opt == nil || opt.Address == "" {
		return nil, errors.New("lattice: no address supplied")
	}

	httpClient := opt.HTTPClient
	if httpClient == nil {
		timeout := opt.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: "http://" + opt.Address,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Open builds a client from a DSN.
func Open(dsn string) (*Client, error) {
	opt, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewClient(opt)
}

// Health checks that the server is up and answering.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// ListCubes returns every cube.
func (c *Client) ListCubes(ctx context.Context) ([]*cube.Cube, error) {
	var resp struct {
		Cubes []*cube.Cube `json:"cubes"`
	}
	if err := c.get(ctx, "/api/v1/cubes", &resp); err != nil {
		return nil, err
	}
	return resp.Cubes, nil
}

// GetCube returns one cube by name.
func (c *Client) GetCube(ctx context.Context, name string) (*cube.Cube, error) {
	var cb cube.Cube
	if err := c.get(ctx, "/api/v1/cubes/"+url.PathEscape(name), &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// ListFacts returns every fact table.
func (c *Client) ListFacts(ctx context.Context) ([]*cube.FactTable, error) {
	return c.listFacts(ctx, "/api/v1/facts")
}

// FactsForCube returns the fact tables feeding one cube.
func (c *Client) FactsForCube(ctx context.Context, cubeName string) ([]*cube.FactTable, error) {
	return c.listFacts(ctx, "/api/v1/facts?cube="+url.QueryEscape(cubeName))
}

func (c *Client) listFacts(ctx context.Context, path string) ([]*cube.FactTable, error) {
	var resp struct {
		Facts []*cube.FactTable `json:"facts"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Facts, nil
}

// GetFact returns one fact table by name.
func (c *Client) GetFact(ctx context.Context, name string) (*cube.FactTable, error) {
	var fact cube.FactTable
	if err := c.get(ctx, "/api/v1/facts/"+url.PathEscape(name), &fact); err != nil {
		return nil, err
	}
	return &fact, nil
}

// FactStorages returns the storages a fact is tracked on with their update
// periods.
func (c *Client) FactStorages(ctx context.Context, name string) (map[string][]cube.UpdatePeriod, error) {
	var resp struct {
		Storages map[string][]cube.UpdatePeriod `json:"storages"`
	}
	if err := c.get(ctx, "/api/v1/facts/"+url.PathEscape(name)+"/storages", &resp); err != nil {
		return nil, err
	}
	return resp.Storages, nil
}

// ListDimensions returns every dimension table.
func (c *Client) ListDimensions(ctx context.Context) ([]*cube.DimensionTable, error) {
	var resp struct {
		Dimensions []*cube.DimensionTable `json:"dimensions"`
	}
	if err := c.get(ctx, "/api/v1/dimensions", &resp); err != nil {
		return nil, err
	}
	return resp.Dimensions, nil
}

// GetDimension returns one dimension table by name.
func (c *Client) GetDimension(ctx context.Context, name string) (*cube.DimensionTable, error) {
	var dim cube.DimensionTable
	if err := c.get(ctx, "/api/v1/dimensions/"+url.PathEscape(name), &dim); err != nil {
		return nil, err
	}
	return &dim, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	c.logger.Debug("lattice request", zap.String("url", reqURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// apiError turns a non-200 response into a typed error. The status carries
// the kind; the body's error and code ride along as context.
func (c *Client) apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return errors.Errorf("lattice: server returned %s", resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s (%s)", payload.Error, payload.Code)
	case http.StatusConflict:
		return errors.Wrapf(ErrWrongKind, "%s (%s)", payload.Error, payload.Code)
	}
	return errors.Errorf("lattice: %s (%s)", payload.Error, payload.Code)
}
