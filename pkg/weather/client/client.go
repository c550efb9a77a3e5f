package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/env"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather/api"
)

var (
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 3 * time.Second
	DefaultRetryMax     = 5
)

// APIError is a non 2xx answer of the weather API.
type APIError struct {
	Code   int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weather api returned %d: %s", e.Code, e.Detail)
}

// IsNoRouter returns true if the API could not reach any router.
func IsNoRouter(err error) bool {
	var apiErr *APIError
	return xerrors.As(err, &apiErr) && apiErr.Code == http.StatusInternalServerError &&
		strings.EqualFold(apiErr.Detail, weather.ErrNoHealthyRouter.Error())
}

// IsNotFound returns true if the API had no record to answer with.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return xerrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

type Client struct {
	BaseURL string
	HTTP    *retryablehttp.Client
}

// New returns a client for the weather API at baseURL. Server errors are retried with
// exponential backoff, the last response is returned once the retries are exhausted.
func New(baseURL string, log *zap.SugaredLogger) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP: &retryablehttp.Client{
			HTTPClient: &http.Client{
				Timeout: time.Duration(env.ReadIntOrDefault(util.ApiClientTimeoutEnv, 10)) * time.Second, // nolint:forbidigo
			},
			RetryWaitMin: DefaultRetryWaitMin,
			RetryWaitMax: DefaultRetryWaitMax,
			RetryMax:     DefaultRetryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
			RequestLogHook: func(_ retryablehttp.Logger, request *http.Request, i int) {
				if i > 0 {
					log.Warnf("Retrying (#%d) weather request %s", i, request.URL)
				}
			},
		},
	}
}

// Get returns the newest record of the station nearest to lon, lat.
func (c *Client) Get(ctx context.Context, lon, lat float64) (weather.Record, error) {
	var rec weather.Record
	err := c.post(ctx, api.GetPath, api.Location{Lon: &lon, Lat: &lat}, &rec)
	return rec, err
}

// Post stores rec and returns the router that served the insert with the new id.
func (c *Client) Post(ctx context.Context, rec weather.Record) (weather.InsertResult, error) {
	var res weather.InsertResult
	err := c.post(ctx, api.PostPath, rec, &res)
	return res, err
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return xerrors.Errorf("error encoding request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return xerrors.Errorf("error calling %s: %w", path, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Code: resp.StatusCode}
		var detail api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Errorf("error decoding response of %s: %w", path, err)
	}
	return nil
}
