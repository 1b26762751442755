package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	executor "github.com/hanpama/gqlserve/internal/executor"
)

// Source tells which part of the HTTP request the GraphQL request was read
// from.
type Source int

const (
	SourceNone Source = iota
	SourceQueryString
	SourceGraphQLBody
	SourceJSONBody
)

func (s Source) String() string {
	switch s {
	case SourceQueryString:
		return "query-string"
	case SourceGraphQLBody:
		return "graphql-body"
	case SourceJSONBody:
		return "json-body"
	default:
		return "none"
	}
}

// Reason is the machine readable cause of a Rejection. It is reported to
// clients as extensions.code.
type Reason string

const (
	ReasonMissingQuery       Reason = "missing-query"
	ReasonMalformedJSON      Reason = "malformed-json"
	ReasonMalformedVariables Reason = "malformed-variables"
	ReasonBodyTooLarge       Reason = "body-too-large"
	ReasonUnreadableBody     Reason = "unreadable-body"
)

// Rejection is returned by Normalize when the HTTP request does not carry an
// executable GraphQL request.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string { return r.Message }

// Status is the HTTP status a rejected request is answered with.
func (r *Rejection) Status() int {
	if r.Reason == ReasonBodyTooLarge {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Request is a GraphQL request in canonical form. OperationName is empty and
// Variables is nil when the client did not send them.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Source        Source
}

// Params converts r into executor parameters.
func (r *Request) Params() executor.Params {
	return executor.Params{Query: r.Query, OperationName: r.OperationName, Variables: r.Variables}
}

const graphqlMediaType = "application/graphql"

// Classify picks the source of the GraphQL request. A query string carrying
// a query parameter wins over any body.
func Classify(method string, query url.Values, header http.Header) Source {
	if query.Has("query") {
		return SourceQueryString
	}
	if method != http.MethodPost {
		return SourceNone
	}
	if mediaTypeMatches(header.Get("Content-Type"), graphqlMediaType) {
		return SourceGraphQLBody
	}
	return SourceJSONBody
}

// Normalize turns r into a Request. It is the only step that reads the
// request body, and it does so only when Classify picks a body source,
// reading at most maxBody bytes when maxBody > 0. Decoding is left to
// FromQueryString, FromGraphQLBody and FromJSONBody, which do no I/O.
// Errors are always *Rejection.
func Normalize(r *http.Request, maxBody int64) (*Request, error) {
	query := r.URL.Query()
	source := Classify(r.Method, query, r.Header)
	switch source {
	case SourceQueryString:
		return FromQueryString(query)
	case SourceGraphQLBody, SourceJSONBody:
		body, rerr := readBody(r, maxBody)
		if rerr != nil {
			return nil, rerr
		}
		if source == SourceGraphQLBody {
			return FromGraphQLBody(body)
		}
		return FromJSONBody(body)
	default:
		return nil, reject(ReasonMissingQuery, "no GraphQL query found in request")
	}
}

// FromQueryString reads the query, operationName and variables parameters.
func FromQueryString(query url.Values) (*Request, error) {
	q := query.Get("query")
	if q == "" {
		return nil, reject(ReasonMissingQuery, "query parameter is empty")
	}
	vars, err := queryStringVariables(query.Get("variables"))
	if err != nil {
		return nil, err
	}
	return &Request{
		Query:         q,
		OperationName: query.Get("operationName"),
		Variables:     vars,
		Source:        SourceQueryString,
	}, nil
}

// FromGraphQLBody takes the whole body as the query document.
func FromGraphQLBody(body []byte) (*Request, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, reject(ReasonMissingQuery, "request body is empty")
	}
	return &Request{Query: string(body), Source: SourceGraphQLBody}, nil
}

type jsonRequest struct {
	Query         *string         `json:"query"`
	OperationName *string         `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

// FromJSONBody decodes a {"query", "operationName", "variables"} object.
func FromJSONBody(body []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, reject(ReasonMissingQuery, "request body is empty")
	}
	if trimmed[0] != '{' {
		return nil, reject(ReasonMalformedJSON, "request body must be a JSON object")
	}
	var in jsonRequest
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, reject(ReasonMalformedJSON, "invalid JSON body: %v", err)
	}
	if in.Query == nil || *in.Query == "" {
		return nil, reject(ReasonMissingQuery, "query is missing from request body")
	}
	vars, err := bodyVariables(in.Variables)
	if err != nil {
		return nil, err
	}
	req := &Request{Query: *in.Query, Variables: vars, Source: SourceJSONBody}
	if in.OperationName != nil {
		req.OperationName = *in.OperationName
	}
	return req, nil
}

// queryStringVariables decodes the variables parameter. url.Values already
// removed one level of escaping; values that still look escaped are decoded
// once more.
func queryStringVariables(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if text == "" || text == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(text, "{") {
		unescaped, err := url.QueryUnescape(text)
		if err != nil {
			return nil, reject(ReasonMalformedVariables, "variables parameter is not valid URL encoding: %v", err)
		}
		text = strings.TrimSpace(unescaped)
	}
	return decodeVariables([]byte(text))
}

func bodyVariables(raw json.RawMessage) (map[string]any, error) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return nil, nil
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, reject(ReasonMalformedVariables, "invalid variables: %v", err)
		}
		text = bytes.TrimSpace([]byte(s))
		if len(text) == 0 {
			return nil, nil
		}
	}
	return decodeVariables(text)
}

// decodeVariables accepts a JSON object or null. Numbers are kept as
// json.Number so large integers survive until coercion.
func decodeVariables(data []byte) (map[string]any, error) {
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, reject(ReasonMalformedVariables, "variables must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var vars map[string]any
	if err := dec.Decode(&vars); err != nil {
		return nil, reject(ReasonMalformedVariables, "invalid variables: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, reject(ReasonMalformedVariables, "invalid variables: trailing data after object")
	}
	return vars, nil
}

func readBody(r *http.Request, maxBody int64) ([]byte, *Rejection) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, reject(ReasonUnreadableBody, "failed to read request body: %v", err)
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, reject(ReasonBodyTooLarge, "request body exceeds %d bytes", maxBody)
	}
	return body, nil
}

// mediaTypeMatches reports whether contentType falls within want. Parameters
// are ignored and "*" matches any type or subtype.
func mediaTypeMatches(contentType, want string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	gotType, gotSub, ok := strings.Cut(mt, "/")
	if !ok {
		return false
	}
	wantType, wantSub, _ := strings.Cut(want, "/")
	return (gotType == "*" || gotType == wantType) && (gotSub == "*" || gotSub == wantSub)
}
