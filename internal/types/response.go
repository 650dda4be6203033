package types

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Response is a fetched page, sitemap, feed or robots file.
type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte // decompressed
	Request     *Request
	ContentType string

	// FinalURL is the URL after redirects. Relative links on a listing page
	// resolve against it, not against the requested URL.
	FinalURL string

	doc *goquery.Document
}

// NewResponse creates a Response from an http.Response.
func NewResponse(req *Request, httpResp *http.Response, body []byte) *Response {
	finalURL := req.URLString()
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return &Response{
		StatusCode:  httpResp.StatusCode,
		Headers:     httpResp.Header,
		Body:        body,
		Request:     req,
		ContentType: httpResp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}
}

// Document parses the body once and caches the result.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, &ParseError{URL: r.FinalURL, Stage: "html", Err: err}
	}
	r.doc = doc
	return doc, nil
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the declared content type is text/html. Pages
// served as PDF, images or office documents are skipped before parsing.
func (r *Response) IsHTML() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(r.ContentType), "text/html")
	}
	return mediaType == "text/html"
}
