// Package respview provides ResponseView, an immutable view of an executed
// HTTP response with typed accessors and assertion helpers, grounded on the
// request/response handling in http/client.go and executor/http_executor.go
// of the teacher codebase.
package respview

import (
	"encoding/json"
	"fmt"
	"time"

	"venomqa.dev/venomqa/value"
)

// RequestEcho captures the outbound request a ResponseView was produced from,
// so violation reports can show exactly what triggered them.
type RequestEcho struct {
	Method string
	URL    string
	Body   []byte
}

// AssertionError is the sentinel error type expectStatus/expectJSON* raise.
// The scheduler recognises this type specifically (spec.md §4.3, §9) and
// converts it into an action_assertion violation rather than action_error.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return e.Message }

// ResponseView is immutable once constructed: status, headers, raw body,
// lazily-parsed JSON, elapsed duration, and an echo of the request that
// produced it.
type ResponseView struct {
	status     int
	headers    map[string][]string
	body       []byte
	elapsed    time.Duration
	request    RequestEcho
	parsedJSON *value.Value // lazy, nil until first expectJSON()/JSON() call
	parseErr   error
	parsed     bool
}

// New constructs a ResponseView from raw response data.
func New(status int, headers map[string][]string, body []byte, elapsed time.Duration, req RequestEcho) *ResponseView {
	return &ResponseView{
		status:  status,
		headers: headers,
		body:    body,
		elapsed: elapsed,
		request: req,
	}
}

// Status returns the HTTP status code.
func (r *ResponseView) Status() int { return r.status }

// Header returns all values for a header name (empty slice if absent).
func (r *ResponseView) Header(name string) []string { return r.headers[name] }

// Body returns the raw response body bytes.
func (r *ResponseView) Body() []byte { return r.body }

// Elapsed returns how long the request took.
func (r *ResponseView) Elapsed() time.Duration { return r.elapsed }

// Request returns the echoed outbound request.
func (r *ResponseView) Request() RequestEcho { return r.request }

// JSON lazily parses the body as JSON and returns it as a value.Value.
// Parsing happens at most once; subsequent calls return the cached result.
func (r *ResponseView) JSON() (value.Value, error) {
	if !r.parsed {
		r.parsed = true
		var raw interface{}
		if err := json.Unmarshal(r.body, &raw); err != nil {
			r.parseErr = err
		} else {
			v, err := value.From(raw)
			if err != nil {
				r.parseErr = err
			} else {
				r.parsedJSON = &v
			}
		}
	}
	if r.parseErr != nil {
		return value.Null, r.parseErr
	}
	return *r.parsedJSON, nil
}

// BodyExcerpt returns up to maxBytes of the body, for bounded reporting in
// violation records (spec.md §6.4 bounds excerpts to 4 KiB).
func (r *ResponseView) BodyExcerpt(maxBytes int) []byte {
	if len(r.body) <= maxBytes {
		return r.body
	}
	return r.body[:maxBytes]
}

// ExpectStatus asserts the response has exactly the given status code,
// raising *AssertionError otherwise.
func (r *ResponseView) ExpectStatus(want int) error {
	if r.status != want {
		return &AssertionError{Message: fmt.Sprintf("expected status %d, got %d (%s %s)", want, r.status, r.request.Method, r.request.URL)}
	}
	return nil
}

// ExpectStatusIn asserts the response status is one of the given codes.
func (r *ResponseView) ExpectStatusIn(codes ...int) error {
	for _, c := range codes {
		if r.status == c {
			return nil
		}
	}
	return &AssertionError{Message: fmt.Sprintf("expected status in %v, got %d (%s %s)", codes, r.status, r.request.Method, r.request.URL)}
}

// ExpectJSON asserts the body parses as JSON and returns the parsed value.
func (r *ResponseView) ExpectJSON() (value.Value, error) {
	v, err := r.JSON()
	if err != nil {
		return value.Null, &AssertionError{Message: fmt.Sprintf("expected valid JSON body: %v", err)}
	}
	return v, nil
}

// ExpectJSONField asserts the parsed JSON body has the given dotted field
// path present, and returns its value.
func (r *ResponseView) ExpectJSONField(key string) (value.Value, error) {
	v, err := r.ExpectJSON()
	if err != nil {
		return value.Null, err
	}
	fv, ok := v.Get(key)
	if !ok {
		return value.Null, &AssertionError{Message: fmt.Sprintf("expected JSON field %q to be present in %s %s response", key, r.request.Method, r.request.URL)}
	}
	return fv, nil
}
