package server

import (
	"context"
	"net/http"

	"github.com/Sternrassler/bistro-cache/pkg/imaging"
	"github.com/Sternrassler/bistro-cache/pkg/transform"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/hlog"
)

var mediaFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bistro_media_fallbacks_total",
	Help: "Variant requests answered with the unmodified source bytes",
})

// handleMedia serves a size variant of a source image. Variants are cached by
// source identity and preset; concurrent misses for the same variant render
// once. A failed render falls back to the source bytes and is not cached.
// Source bytes are only read on a miss or a fallback.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	preset, err := imaging.ParsePreset(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	info, err := s.media.Stat(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := transform.Key(info.Identity(), preset.Name)
	payload, hit := s.variants.Get(key)
	if !hit {
		v, err := s.coalescer.Dedupe(r.Context(), "media:"+key, func(ctx context.Context) (any, error) {
			src, err := s.media.Read(info)
			if err != nil {
				return nil, err
			}
			out, err := imaging.Render(src.Data, preset)
			if err != nil {
				return nil, err
			}
			s.variants.Put(key, out)
			return out, nil
		})
		if err != nil {
			if r.Context().Err() != nil {
				writeError(w, r, r.Context().Err())
				return
			}
			src, readErr := s.media.Read(info)
			if readErr != nil {
				writeError(w, r, readErr)
				return
			}
			mediaFallbacks.Inc()
			hlog.FromRequest(r).Warn().
				Err(err).
				Str("key", key).
				Msg("Variant computation failed - serving source")
			w.Header().Set("X-Cache", "bypass")
			if err := s.responder.Write(w, r, src.ContentType, src.Data); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write media")
			}
			return
		}
		payload = v.([]byte)
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	if err := s.responder.Write(w, r, http.DetectContentType(payload), payload); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("Failed to write media")
	}
}
