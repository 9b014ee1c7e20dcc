package http

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const maxFormBytes = 64 << 10

// formValues reads a request body as either a url-encoded form or a flat JSON
// object, so browsers and API clients can use the same routes.
func formValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}

	values := url.Values{}
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			values.Set(k, t)
		case float64:
			values.Set(k, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			values.Set(k, strconv.FormatBool(t))
		case nil:
		default:
			return nil, fmt.Errorf("field %q must be a string or number", k)
		}
	}
	return values, nil
}
