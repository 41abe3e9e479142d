package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tessera-live/tessera/internal/app"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listResponse is the envelope every collection endpoint returns.
type listResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// pageFrom reads the 1-based ?page= query parameter.
func pageFrom(r *http.Request) app.Page {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		n = 1
	}
	return app.Page{Number: n}
}

// writeList renders the pagination envelope. Next and previous links reuse
// the request URL with the page parameter swapped.
func writeList(w http.ResponseWriter, r *http.Request, page app.Page, total int, results any) {
	resp := listResponse{Count: total, Results: results}
	if page.Offset()+app.PageSize < total {
		resp.Next = pageURL(r, page.Number+1)
	}
	if page.Number > 1 {
		resp.Previous = pageURL(r, page.Number-1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func pageURL(r *http.Request, n int) *string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// patchBody distinguishes absent fields from fields explicitly set to null,
// which PATCH semantics require.
type patchBody map[string]json.RawMessage

func decodePatch(r *http.Request) (patchBody, error) {
	var b patchBody
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&b); err != nil {
		return nil, err
	}
	return b, nil
}

func (b patchBody) has(key string) bool {
	_, ok := b[key]
	return ok
}

func (b patchBody) isNull(key string) bool {
	raw, ok := b[key]
	return ok && string(raw) == "null"
}

func (b patchBody) unmarshal(key string, dst any) error {
	raw, ok := b[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
