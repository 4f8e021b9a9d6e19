// Package etag implements conditional JSON responses: every body gets a
// content fingerprint as its ETag, and a matching If-None-Match turns the
// reply into 304 Not Modified.
package etag

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// NotModifiedResponses tracks 304 replies
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_etag_304_responses_total",
		Help: "Total number of 304 Not Modified responses",
	})

	// FullResponses tracks 200 replies carrying a body
	FullResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bistro_etag_full_responses_total",
		Help: "Total number of 200 responses sent with a body",
	})
)

// CacheControl is sent with every conditional response: clients may store the
// body but must revalidate before each use.
const CacheControl = "no-cache"

// Responder writes JSON bodies with entity tags.
// It holds no per-request state and is safe for concurrent use.
type Responder struct {
	fingerprint Fingerprint
	logger      zerolog.Logger
}

// NewResponder creates a responder using fp (MD5 when nil).
func NewResponder(fp Fingerprint, logger zerolog.Logger) *Responder {
	if fp == nil {
		fp = MD5
	}
	return &Responder{
		fingerprint: fp,
		logger:      logger,
	}
}

// Tag returns the quoted entity tag for body.
func (r *Responder) Tag(body []byte) string {
	return Quote(r.fingerprint(body))
}

// JSON serializes v once, tags it and writes either 304 with no body (when the
// request's If-None-Match matches) or 200 with the body.
func (r *Responder) JSON(w http.ResponseWriter, req *http.Request, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal response body: %w", err)
	}
	return r.Write(w, req, "application/json; charset=utf-8", body)
}

// Write tags an already serialized body and writes it the same way as JSON.
func (r *Responder) Write(w http.ResponseWriter, req *http.Request, contentType string, body []byte) error {
	tag := r.Tag(body)
	h := w.Header()
	h.Set("ETag", tag)
	h.Set("Cache-Control", CacheControl)

	if Matches(req.Header.Get("If-None-Match"), tag) {
		NotModifiedResponses.Inc()
		r.logger.Debug().
			Str("path", req.URL.Path).
			Str("etag", tag).
			Msg("304 Not Modified")
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	FullResponses.Inc()
	h.Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}
