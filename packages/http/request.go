package http

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    string
	Query   url.Values
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(http.Header),
		Query:   make(url.Values),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers.Set(key, value)
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) AddQueryParam(key, value string) *Request {
	r.Query.Add(key, value)
	return r
}

// BuildURL appends the query params to the URL, keeping any query already
// present in it.
func (r *Request) BuildURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	q := u.Query()
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ApplyAuth sets the Authorization header for basic and bearer auth. None
// and inherit leave the request untouched.
func (r *Request) ApplyAuth(auth collection.AuthSpec) {
	switch auth.Type {
	case collection.AuthBasic:
		creds := auth.Username + ":" + auth.Password
		r.Headers.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	case collection.AuthBearer:
		if auth.Token != "" {
			r.Headers.Set("Authorization", "Bearer "+auth.Token)
		}
	}
}

// BuildRequest converts an effective request into a wire request. Disabled
// headers, params and form fields are dropped here.
func BuildRequest(er *inherit.EffectiveRequest) *Request {
	method := strings.ToUpper(er.Method)
	if method == "" {
		method = http.MethodGet
	}
	r := NewRequest(method, er.URL)

	for _, h := range er.Headers {
		if h.Enabled {
			r.Headers.Add(h.Key, h.Value)
		}
	}
	for _, p := range er.Params {
		if p.Enabled {
			r.AddQueryParam(p.Key, p.Value)
		}
	}

	r.SetBody(er.Body)
	if er.Body == "" && len(er.Form) > 0 {
		form := make(url.Values)
		for _, f := range er.Form {
			if f.Enabled {
				form.Add(f.Key, f.Value)
			}
		}
		r.SetBody(form.Encode())
		if r.Headers.Get("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	r.ApplyAuth(er.Auth)
	r.URL = r.BuildURL()
	r.Query = make(url.Values)
	return r
}
