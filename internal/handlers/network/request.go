package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

const maxBodyBytes = 10 << 20

// build constructs the HTTP request for one attempt. Payload travels as a
// JSON body for post, put and patch, and as query parameters for get.
func (h *Handler) build(ctx context.Context, req action.Request, method string) (*http.Request, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if h.baseURL != nil && !target.IsAbs() {
		target = h.baseURL.ResolveReference(target)
	}

	var body io.Reader
	switch req.Method {
	case action.KindGet:
		if req.Payload != nil {
			query, err := mergeQuery(target.Query(), req.Payload)
			if err != nil {
				return nil, err
			}
			target.RawQuery = query.Encode()
		}
	case action.KindPost, action.KindPut, action.KindPatch:
		if req.Payload != nil {
			encoded, err := json.Marshal(req.Payload)
			if err != nil {
				return nil, fmt.Errorf("encode payload: %w", err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

// mergeQuery adds payload fields to an existing query. Object payloads are
// stringified per value and string payloads are parsed as a query string.
// Any other payload, such as a typed map or struct, is normalized through
// JSON and must encode as an object.
func mergeQuery(query url.Values, payload any) (url.Values, error) {
	switch p := payload.(type) {
	case map[string]any:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			query.Set(k, action.Stringify(p[k]))
		}
		return query, nil
	case map[string]string:
		for k, v := range p {
			query.Set(k, v)
		}
		return query, nil
	case string:
		parsed, err := url.ParseQuery(p)
		if err != nil {
			return nil, fmt.Errorf("parse query payload: %w", err)
		}
		for k, values := range parsed {
			for _, v := range values {
				query.Add(k, v)
			}
		}
		return query, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode query payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("query payload must be an object or query string, got %T", payload)
	}
	return mergeQuery(query, fields)
}

// readBody parses the response as JSON on a best-effort basis. A body that
// is not valid JSON yields nil data rather than an error.
func readBody(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, nil
	}
	return gjson.ParseBytes(raw).Value(), nil
}
