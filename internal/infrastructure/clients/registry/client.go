// Package registry talks to the national hospital-information registry
// (getHospBasisList) and normalizes its loosely shaped responses.
package registry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const hospitalListPath = "/getHospBasisList"

// Client fetches facility pages from the registry. Fetch failures are
// absorbed: callers see an empty list, never an error.
type Client interface {
	// KeyConfigured reports whether a service key is available
	KeyConfigured() bool

	// FetchPage returns the items of one page, or an empty list on any failure
	FetchPage(ctx context.Context, pageNo, pageSize int, filters Filters) []RawItem

	// FetchRaw returns the undecoded body of one page for diagnostics
	FetchRaw(ctx context.Context, pageNo, pageSize int, regionCode string) RawResponse
}

// HTTPClient is the resty-backed Client.
type HTTPClient struct {
	http       *resty.Client
	serviceKey string
	limiter    *rate.Limiter
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRateLimit caps outgoing calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a registry client for baseURL.
func NewClient(baseURL, serviceKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
		serviceKey: strings.TrimSpace(serviceKey),
		limiter:    rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyConfigured reports whether a service key is available.
func (c *HTTPClient) KeyConfigured() bool {
	return c.serviceKey != ""
}

// FetchPage issues one paginated request.
func (c *HTTPClient) FetchPage(ctx context.Context, pageNo, pageSize int, filters Filters) []RawItem {
	logger := observability.LoggerFromContext(ctx)

	if !c.KeyConfigured() {
		logger.Warn().Msg("registry service key not configured, skipping fetch")
		return []RawItem{}
	}

	params := c.queryParams(pageNo, pageSize)
	filters.apply(params)

	body, status, err := c.get(ctx, params)
	if err != nil {
		logger.Error().Err(err).Int("page_no", pageNo).Str("region_code", params["sidoCd"]).Msg("registry request failed")
		return []RawItem{}
	}
	if status < 200 || status > 299 {
		logger.Error().Int("status", status).Int("page_no", pageNo).Str("region_code", params["sidoCd"]).Msg("registry returned non-2xx status")
		return []RawItem{}
	}

	page, err := DecodePage(body)
	if err != nil {
		logger.Error().Err(err).Int("page_no", pageNo).Str("region_code", params["sidoCd"]).Msg("registry response could not be parsed")
		return []RawItem{}
	}
	if !page.Success() {
		logger.Warn().
			Str("result_code", page.ResultCode).
			Str("result_msg", page.ResultMsg).
			Int("page_no", pageNo).
			Msg("registry returned non-success result code")
		return []RawItem{}
	}
	if len(page.Items) == 0 {
		logger.Debug().
			Int("page_no", pageNo).
			Int("total_count", page.TotalCount).
			Str("region_code", params["sidoCd"]).
			Msg("registry page has no items")
	}
	return page.Items
}

// FetchRaw returns the raw response body for one page.
func (c *HTTPClient) FetchRaw(ctx context.Context, pageNo, pageSize int, regionCode string) RawResponse {
	if !c.KeyConfigured() {
		return RawResponse{KeyConfigured: false, Error: "service key not configured"}
	}

	params := c.queryParams(pageNo, pageSize)
	Filters{RegionCode: regionCode}.apply(params)

	body, status, err := c.get(ctx, params)
	out := RawResponse{KeyConfigured: true, StatusCode: status, Body: string(body)}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (c *HTTPClient) get(ctx context.Context, params map[string]string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	ctx, span := observability.StartSpan(ctx, "registry.getHospBasisList")
	defer span.End()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(hospitalListPath)
	if err != nil {
		observability.RecordError(span, err)
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	return resp.Body(), resp.StatusCode(), nil
}

func (c *HTTPClient) queryParams(pageNo, pageSize int) map[string]string {
	return map[string]string{
		"ServiceKey": c.serviceKey,
		"pageNo":     strconv.Itoa(pageNo),
		"numOfRows":  strconv.Itoa(pageSize),
		"_type":      "json",
	}
}

func (f Filters) apply(params map[string]string) {
	region := strings.TrimSpace(f.RegionCode)
	if region == "" {
		region = DefaultRegionCode
	}
	params["sidoCd"] = region

	if v := strings.TrimSpace(f.DistrictCode); v != "" {
		params["sgguCd"] = v
	}
	if v := strings.TrimSpace(f.Neighborhood); v != "" {
		params["emdongNm"] = v
	}
	if v := strings.TrimSpace(f.Name); v != "" {
		params["yadmNm"] = v
	}
	if f.Longitude != nil && f.Latitude != nil {
		params["xPos"] = strconv.FormatFloat(*f.Longitude, 'f', -1, 64)
		params["yPos"] = strconv.FormatFloat(*f.Latitude, 'f', -1, 64)
		if f.RadiusMeters > 0 {
			params["radius"] = strconv.Itoa(f.RadiusMeters)
		}
	}
}
