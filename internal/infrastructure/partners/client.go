package partners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/DanielPopoola/claims-settlement/internal/config"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
)

const maxResponseBody = 1 << 20

// decision is a partner's business answer decoded from a 2xx body.
type decision struct {
	approved  bool
	reason    string
	reference string
}

type endpoint struct {
	method string
	path   string
	decode func(body []byte) (decision, error)
}

// HTTPClient speaks JSON over HTTP to one partner. Status classification is
// per partner: 2xx is decoded into a business decision, 429 and 5xx are
// retryable, the partner's business codes are rejections and any other
// status is a fault.
type HTTPClient struct {
	partner       gateway.Partner
	baseURL       string
	httpClient    *http.Client
	endpoints     map[string]endpoint
	businessCodes []int
}

var _ gateway.Client = (*HTTPClient)(nil)

func newHTTPClient(partner gateway.Partner, cfg config.PartnerConfig, businessCodes []int, endpoints map[string]endpoint) *HTTPClient {
	return &HTTPClient{
		partner:       partner,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    newTransportClient(cfg),
		endpoints:     endpoints,
		businessCodes: businessCodes,
	}
}

// newTransportClient bounds connection setup by the connect timeout and the
// wait for response headers by the read timeout. The overall attempt deadline
// comes from the gateway's context.
func newTransportClient(cfg config.PartnerConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.ReadTimeout
	return &http.Client{Transport: transport}
}

func (c *HTTPClient) Partner() gateway.Partner { return c.partner }

func (c *HTTPClient) Invoke(ctx context.Context, operation string, payload any) (*gateway.Response, error) {
	ep, ok := c.endpoints[operation]
	if !ok {
		return &gateway.Response{Fault: true, Reason: fmt.Sprintf("unsupported operation %q", operation)}, nil
	}

	var key string
	if k, ok := payload.(interface{ Key() string }); ok {
		key = k.Key()
	}

	status, body, err := c.sendRequest(ctx, ep.method, c.baseURL+ep.path, payload, key)
	if err != nil {
		return nil, err
	}
	return c.classify(ep, status, body), nil
}

func (c *HTTPClient) classify(ep endpoint, status int, body []byte) *gateway.Response {
	resp := &gateway.Response{StatusCode: status, Payload: body}

	switch {
	case status >= 200 && status < 300:
		d, err := ep.decode(body)
		if err != nil {
			resp.Fault = true
			resp.Reason = fmt.Sprintf("decode response: %v", err)
			return resp
		}
		resp.Success = d.approved
		resp.Reason = d.reason
		resp.Reference = d.reference
	case status == http.StatusTooManyRequests || status >= 500:
		resp.Retryable = true
		resp.Reason = errorReason(body, status)
	case slices.Contains(c.businessCodes, status):
		resp.Reason = errorReason(body, status)
	default:
		resp.Fault = true
		resp.Reason = errorReason(body, status)
	}
	return resp
}

func (c *HTTPClient) sendRequest(ctx context.Context, method, url string, payload any, idempotencyKey string) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("error reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func errorReason(body []byte, status int) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Err != "" || errResp.Message != "") {
		if errResp.Message == "" {
			return errResp.Err
		}
		if errResp.Err == "" {
			return errResp.Message
		}
		return errResp.Err + ": " + errResp.Message
	}
	return http.StatusText(status)
}

func decodeAs[T any](interpret func(T) decision) func([]byte) (decision, error) {
	return func(body []byte) (decision, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return decision{}, err
		}
		return interpret(v), nil
	}
}
