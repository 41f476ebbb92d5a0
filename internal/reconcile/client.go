package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	httpclient "species-checker/internal/common/http"
	"species-checker/internal/common/logger"
	"species-checker/internal/common/metrics"
	"species-checker/internal/common/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opMatch  = "match"
	opExtend = "extend"
)

// Poster sends a form-encoded POST and returns the 2xx response body.
type Poster interface {
	PostForm(ctx context.Context, operation, endpoint string, form url.Values) ([]byte, error)
}

// Client performs the match and extend calls for one batch of names.
type Client struct {
	endpoint string
	poster   Poster
	columns  []string
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewClient(cfg config.ReconcileConfig, log logger.Logger) *Client {
	poster := httpclient.NewClient(
		time.Duration(cfg.Timeout)*time.Millisecond,
		httpclient.WithRetry(cfg.MaxRetries, time.Duration(cfg.RetryBackoff)*time.Millisecond),
		httpclient.WithLogger(log),
	)
	return NewClientWithPoster(cfg.Endpoint, poster, log)
}

func NewClientWithPoster(endpoint string, poster Poster, log logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		poster:   poster,
		columns:  Columns,
		tracer:   otel.Tracer("species-checker/reconcile"),
		logger:   log,
	}
}

type matchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type matchResult struct {
	Result []struct {
		ID    externalID `json:"id"`
		Score float64    `json:"score"`
	} `json:"result"`
}

type extendProperty struct {
	ID string `json:"id"`
}

type extendRequest struct {
	IDs        []string         `json:"ids"`
	Properties []extendProperty `json:"properties"`
}

type extendResponse struct {
	Rows map[string]map[string][]struct {
		Str cellValue `json:"str"`
	} `json:"rows"`
}

// ReconcileBatch matches every name, fetches the attribute columns for the
// matched identifiers, and returns one row per name in input order.
func (c *Client) ReconcileBatch(ctx context.Context, names []string) ([]ResultRow, error) {
	if len(names) == 0 {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "reconcile.batch", trace.WithAttributes(attribute.Int("batch.size", len(names))))
	defer span.End()

	candidates, err := c.match(ctx, names)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	attrs, err := c.extend(ctx, candidates)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	rows := make([]ResultRow, len(candidates))
	for i, cand := range candidates {
		rows[i] = ResultRow{
			Score:      cand.Score,
			Attributes: attrs[cand.ExternalID],
		}
	}
	return rows, nil
}

func (c *Client) match(ctx context.Context, names []string) ([]MatchCandidate, error) {
	queries := make(map[string]matchQuery, len(names))
	for i, name := range names {
		queries[strconv.Itoa(i)] = matchQuery{Query: name, Limit: 1}
	}
	payload, err := json.Marshal(queries)
	if err != nil {
		return nil, fmt.Errorf("encode match queries: %w", err)
	}

	body, err := c.call(ctx, opMatch, url.Values{"queries": {string(payload)}})
	if err != nil {
		return nil, err
	}
	if err := validateBody(opMatch, validation.MatchResponse, body); err != nil {
		return nil, err
	}

	var resp map[string]matchResult
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewInvalidResponseError(opMatch, err.Error())
	}

	candidates := make([]MatchCandidate, len(names))
	for i, name := range names {
		res, ok := resp[strconv.Itoa(i)]
		if !ok || len(res.Result) == 0 {
			return nil, apperrors.NewNoMatchError(name, i)
		}
		candidates[i] = MatchCandidate{
			Name:       name,
			ExternalID: string(res.Result[0].ID),
			Score:      res.Result[0].Score,
		}
	}
	return candidates, nil
}

func (c *Client) extend(ctx context.Context, candidates []MatchCandidate) (map[string]map[string]string, error) {
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if !seen[cand.ExternalID] {
			seen[cand.ExternalID] = true
			ids = append(ids, cand.ExternalID)
		}
	}

	props := make([]extendProperty, len(c.columns))
	for i, col := range c.columns {
		props[i] = extendProperty{ID: col}
	}
	payload, err := json.Marshal(extendRequest{IDs: ids, Properties: props})
	if err != nil {
		return nil, fmt.Errorf("encode extend request: %w", err)
	}

	body, err := c.call(ctx, opExtend, url.Values{"extend": {string(payload)}})
	if err != nil {
		return nil, err
	}
	if err := validateBody(opExtend, validation.ExtendResponse, body); err != nil {
		return nil, err
	}

	var resp extendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewInvalidResponseError(opExtend, err.Error())
	}

	var missing []string
	attrs := make(map[string]map[string]string, len(ids))
	for _, id := range ids {
		row, ok := resp.Rows[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		values := make(map[string]string, len(c.columns))
		for _, col := range c.columns {
			cells := row[col]
			if len(cells) == 0 || cells[0].Str == "" {
				continue
			}
			values[col] = string(cells[0].Str)
		}
		attrs[id] = values
	}
	if len(missing) > 0 {
		return nil, apperrors.NewPartialAttributesError(missing)
	}
	return attrs, nil
}

func (c *Client) call(ctx context.Context, operation string, form url.Values) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "reconcile."+operation)
	defer span.End()

	start := time.Now()
	body, err := c.poster.PostForm(ctx, operation, c.endpoint, form)
	metrics.ReconcileCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ReconcileCalls.WithLabelValues(operation, string(apperrors.CodeOf(err))).Inc()
		recordSpanError(span, err)
		c.logger.Warn("Reconciliation call failed", map[string]interface{}{
			"operation": operation,
			"endpoint":  c.endpoint,
			"error":     err,
		})
		return nil, err
	}
	metrics.ReconcileCalls.WithLabelValues(operation, "ok").Inc()
	return body, nil
}

func validateBody(operation string, schema *validation.Schema, body []byte) error {
	result := schema.ValidateBytes(body)
	if !result.Valid {
		return apperrors.NewInvalidResponseError(operation, result.Summary(3))
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
}

// externalID accepts identifiers sent as JSON strings or numbers.
type externalID string

func (id *externalID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = externalID(s)
		return nil
	}
	*id = externalID(bytes.TrimSpace(data))
	return nil
}

// cellValue renders an extend value as text. null becomes empty.
type cellValue string

func (v *cellValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = cellValue(s)
	default:
		*v = cellValue(data)
	}
	return nil
}
