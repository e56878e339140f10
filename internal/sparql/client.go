// Package sparql executes QueryIR against a remote SPARQL 1.1 endpoint
// using the SPARQL protocol over HTTP.
package sparql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/querysparql"
)

// Default values for client configuration.
const (
	DefaultTimeout = 30 * time.Second

	resultsMediaType = "application/sparql-results+json"
	formMediaType    = "application/x-www-form-urlencoded"
)

var _ queryir.Executor = (*Client)(nil)

// Options configures a Client.
type Options struct {
	// Endpoint receives queries. Required.
	Endpoint string

	// UpdateEndpoint receives updates. Defaults to Endpoint.
	UpdateEndpoint string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client sends compiled QueryIR to a SPARQL endpoint.
type Client struct {
	endpoint       string
	updateEndpoint string
	httpClient     *http.Client
	compiler       *querysparql.SPARQLCompiler
}

// NewClient creates a client for the given endpoint.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("sparql endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid sparql endpoint %q: %w", endpoint, err)
	}

	update := strings.TrimSpace(opts.UpdateEndpoint)
	if update == "" {
		update = endpoint
	} else if _, err := url.ParseRequestURI(update); err != nil {
		return nil, fmt.Errorf("invalid sparql update endpoint %q: %w", update, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:       endpoint,
		updateEndpoint: update,
		httpClient:     httpClient,
		compiler:       querysparql.NewSPARQLCompiler(),
	}, nil
}

// Launch compiles q to SPARQL and sends it to the query or update endpoint.
func (c *Client) Launch(ctx context.Context, q queryir.Query) (*queryir.Result, error) {
	text, err := c.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile sparql: %w", err)
	}

	if querysparql.IsUpdate(q) {
		if err := c.Update(ctx, text); err != nil {
			return nil, err
		}
		return &queryir.Result{}, nil
	}
	return c.Query(ctx, text)
}

// Query sends a SPARQL query and decodes the JSON results.
//
// A response body that is not a SPARQL JSON results document yields a nil
// result, which callers treat as "no match".
func (c *Client) Query(ctx context.Context, text string) (*queryir.Result, error) {
	slog.Debug("sparql query", "endpoint", c.endpoint, "query", text)

	body, err := c.post(ctx, c.endpoint, url.Values{"query": {text}})
	if err != nil {
		return nil, fmt.Errorf("sparql query: %w", err)
	}

	result, err := DecodeResults(body)
	if err != nil {
		slog.Warn("unreadable sparql results, treating as no match",
			"endpoint", c.endpoint,
			"error", err,
		)
		return nil, nil
	}
	return result, nil
}

// Update sends a SPARQL update.
func (c *Client) Update(ctx context.Context, text string) error {
	slog.Debug("sparql update", "endpoint", c.updateEndpoint, "update", text)

	if _, err := c.post(ctx, c.updateEndpoint, url.Values{"update": {text}}); err != nil {
		return fmt.Errorf("sparql update: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", formMediaType)
	req.Header.Set("Accept", resultsMediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// resultsDocument is the SPARQL 1.1 Query Results JSON format.
type resultsDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]rdfTerm `json:"bindings"`
	} `json:"results"`
}

type rdfTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
	Lang     string `json:"xml:lang"`
}

// DecodeResults parses a SPARQL JSON results document into rows.
// URIs decode to their string form; literals decode by datatype.
func DecodeResults(body []byte) (*queryir.Result, error) {
	var doc resultsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("decode results: missing results member")
	}

	result := &queryir.Result{
		Vars: doc.Head.Vars,
		Rows: make([]queryir.Row, 0, len(doc.Results.Bindings)),
	}
	for _, binding := range doc.Results.Bindings {
		row := make(queryir.Row, len(binding))
		for name, term := range binding {
			row[name] = decodeTerm(term)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func decodeTerm(t rdfTerm) ir.IRValue {
	switch t.Type {
	case "uri":
		return ir.IRString(t.Value)
	case "bnode":
		return ir.IRString("_:" + t.Value)
	default:
		// "literal" and the legacy "typed-literal"
		return queryir.DecodeLiteral(t.Value, t.Datatype)
	}
}
