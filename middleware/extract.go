package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxBodyPeek bounds how much of a request body a body source will read.
const maxBodyPeek = 64 << 10

type sourceKind uint8

const (
	sourceHeader sourceKind = iota
	sourceBody
	sourceQuery
)

// Source names one place a credential may travel in a request.
type Source struct {
	kind sourceKind
	name string
}

// Header reads "Authorization: Bearer <token>".
func Header() Source { return Source{kind: sourceHeader, name: "Authorization"} }

// BodyField reads a top-level string field of a JSON request body. The body
// is restored so the handler can decode it again.
func BodyField(name string) Source { return Source{kind: sourceBody, name: name} }

// Query reads a URL query parameter.
func Query(name string) Source { return Source{kind: sourceQuery, name: name} }

func (s Source) String() string {
	switch s.kind {
	case sourceHeader:
		return "header"
	case sourceBody:
		return "body:" + s.name
	default:
		return "query:" + s.name
	}
}

// Extract returns the first non-empty credential found in sources, tried in
// order. With no sources it reads the Authorization header only.
func Extract(r *http.Request, sources ...Source) (string, bool) {
	if len(sources) == 0 {
		sources = []Source{Header()}
	}
	for _, src := range sources {
		var token string
		switch src.kind {
		case sourceHeader:
			token = bearerToken(r.Header.Get(src.name))
		case sourceBody:
			token = bodyField(r, src.name)
		case sourceQuery:
			token = strings.TrimSpace(r.URL.Query().Get(src.name))
		}
		if token != "" {
			return token, true
		}
	}
	return "", false
}

func bearerToken(value string) string {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(value[len(bearer):])
}

func bodyField(r *http.Request, name string) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(fields[name], &value) != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
