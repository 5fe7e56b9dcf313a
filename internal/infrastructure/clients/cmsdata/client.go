package cmsdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"github.com/zatekoja/ratebenchmark/pkg/config"
	apperrors "github.com/zatekoja/ratebenchmark/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Row field names served by the Medicare Physician & Other Practitioners dataset.
const (
	FieldAllowedAmount   = "Avg_Mdcr_Alowd_Amt"
	FieldSubmittedCharge = "Avg_Sbmtd_Chrg"
	FieldPaymentAmount   = "Avg_Mdcr_Pymt_Amt"
	FieldDescription     = "HCPCS_Desc"
	FieldProviderRegion  = "Rndrng_Prvdr_State_Abrvtn"
)

const maxResponseBytes = 32 << 20

// Client implements the benchmark dataset provider over the CMS data API.
type Client struct {
	baseURL     string
	codeField   string
	regionField string
	pageSize    int
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
}

// NewClient creates a new dataset client.
func NewClient(cfg *config.RateReferenceConfig) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.DatasetURL, "/"),
		codeField:   cfg.CodeField,
		regionField: cfg.RegionField,
		pageSize:    cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
	if c.pageSize <= 0 {
		c.pageSize = 500
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker()
	}
	return c
}

func newBreaker() *gobreaker.CircuitBreaker {
	logger := observability.GetLogger()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cms-rate-dataset",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transport and status failures count towards tripping.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsType(err, apperrors.ErrorTypeExternal)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("rate dataset circuit breaker state changed")
		},
	})
}

// FetchRateRows queries the dataset for code, filtered by region unless
// region is empty.
func (c *Client) FetchRateRows(ctx context.Context, code, region string) ([]entities.RawRateRow, error) {
	ctx, span := observability.StartSpan(ctx, "cmsdata.FetchRateRows")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("ratebench.code", code),
		attribute.String("ratebench.region", region),
	)

	if c.breaker == nil {
		rows, err := c.fetch(ctx, code, region)
		observability.RecordError(span, err)
		return rows, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, code, region)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = apperrors.NewExternalError("rate dataset circuit open", err)
		}
		observability.RecordError(span, err)
		return nil, err
	}
	rows, _ := result.([]entities.RawRateRow)
	return rows, nil
}

// QueryURL builds the dataset query URL.
func (c *Client) QueryURL(code, region string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	query.Set(fmt.Sprintf("filter[%s]", c.codeField), code)
	if region != "" {
		query.Set(fmt.Sprintf("filter[%s]", c.regionField), region)
	}
	query.Set("size", strconv.Itoa(c.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) fetch(ctx context.Context, code, region string) ([]entities.RawRateRow, error) {
	endpoint, err := c.QueryURL(code, region)
	if err != nil {
		return nil, apperrors.NewInternalError("invalid dataset url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build dataset request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("rate dataset request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewExternalError(fmt.Sprintf("rate dataset returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read rate dataset response", err)
	}

	return c.decodeRows(body)
}

func (c *Client) decodeRows(body []byte) ([]entities.RawRateRow, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperrors.NewMalformedError("rate dataset response is not a JSON array", nil)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, apperrors.NewMalformedError("failed to decode rate dataset response", err)
	}

	rows := make([]entities.RawRateRow, 0, len(raw))
	for _, fields := range raw {
		rows = append(rows, entities.RawRateRow{
			AllowedAmount:   amountField(fields, FieldAllowedAmount),
			SubmittedCharge: amountField(fields, FieldSubmittedCharge),
			PaymentAmount:   amountField(fields, FieldPaymentAmount),
			Description:     stringField(fields, FieldDescription),
			ProviderRegion:  stringField(fields, c.regionField),
		})
	}
	return rows, nil
}

func amountField(fields map[string]json.RawMessage, name string) entities.Amount {
	var amount entities.Amount
	if raw, ok := fields[name]; ok {
		_ = amount.UnmarshalJSON(raw)
	}
	return amount
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
