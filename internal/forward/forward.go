// Package forward executes JSON-RPC 2.0 tool calls against backend
// endpoints. Failures never propagate as errors; they come back inside
// the result as an "error" entry so fan-out aggregation can render them
// per backend.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/metrics"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Forwarder is a pooled JSON-RPC client, safe for concurrent use by
// fan-out workers. Tool calls are not retried: a downstream tool may
// not be idempotent.
type Forwarder struct {
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
	nextID     atomic.Int64
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// New creates a forwarder with the given per-call timeout. Metrics may
// be nil.
func New(timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Forwarder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Forwarder{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:  logger.Named("forward"),
		metrics: m,
	}
}

// CallTool invokes a named tool at {endpoint}/mcp and returns the
// decoded result object. A JSON-RPC error becomes {"error": message};
// a transport failure becomes {"error": "<endpoint> unreachable"}.
func (f *Forwarder) CallTool(ctx context.Context, backend, endpoint, toolName string, arguments map[string]interface{}) map[string]interface{} {
	ctx, span := tracing.ForwardSpan(ctx, backend, toolName)
	defer span.End()

	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params:  rpcParams{Name: toolName, Arguments: arguments},
		ID:      f.nextID.Add(1),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.RecordError(span, err)
		return map[string]interface{}{"error": fmt.Sprintf("cannot encode arguments: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/mcp", bytes.NewReader(body))
	if err != nil {
		tracing.RecordError(span, err)
		return map[string]interface{}{"error": fmt.Sprintf("%s unreachable", endpoint)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(start)

	if err != nil {
		f.logger.Warn("Backend unreachable",
			zap.String("backend", backend),
			zap.String("endpoint", endpoint),
			zap.String("tool", toolName),
			zap.Error(err),
		)
		f.recordForward(backend, false, latency, 0)
		tracing.RecordError(span, err)
		return map[string]interface{}{"error": fmt.Sprintf("%s unreachable", endpoint)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		f.recordForward(backend, false, latency, resp.StatusCode)
		tracing.RecordError(span, err)
		return map[string]interface{}{"error": fmt.Sprintf("%s unreachable", endpoint)}
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		f.logger.Warn("Invalid backend response",
			zap.String("backend", backend),
			zap.Int("status", resp.StatusCode),
		)
		f.recordForward(backend, false, latency, resp.StatusCode)
		tracing.RecordError(span, err)
		return map[string]interface{}{
			"error": fmt.Sprintf("invalid response from %s (HTTP %d)", backend, resp.StatusCode),
		}
	}

	result := extractResult(data)
	if msg, isErr := ErrorMessage(result); isErr {
		f.recordForward(backend, false, latency, resp.StatusCode)
		tracing.RecordError(span, fmt.Errorf("%s", msg))
		return result
	}

	f.recordForward(backend, true, latency, resp.StatusCode)
	tracing.SetSuccess(span)

	f.logger.Debug("Forwarded tool call",
		zap.String("backend", backend),
		zap.String("tool", toolName),
		zap.Duration("latency", latency),
	)
	return result
}

// extractResult maps a JSON-RPC response body onto the caller-facing
// result object: the error message wins, then result, then the body
// itself. A non-object result is wrapped as {"value": ...}.
func extractResult(data map[string]interface{}) map[string]interface{} {
	if rpcErr, ok := data["error"]; ok && rpcErr != nil {
		return map[string]interface{}{"error": errorText(rpcErr)}
	}

	result, ok := data["result"]
	if !ok {
		return data
	}
	if obj, ok := result.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{"value": result}
}

func errorText(rpcErr interface{}) string {
	if obj, ok := rpcErr.(map[string]interface{}); ok {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("%v", rpcErr)
}

// ErrorMessage reports whether a forward result carries an error entry
func ErrorMessage(result map[string]interface{}) (string, bool) {
	v, ok := result["error"]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

func (f *Forwarder) recordForward(backend string, success bool, latency time.Duration, statusCode int) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordForward(backend, success, latency, statusCode)
}
