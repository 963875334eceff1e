// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/swipedeck/deckd/internal/logging"
)

// requestIDHeader carries the request ID to and from upstream proxies.
const requestIDHeader = "X-Request-ID"

// RequestTracing propagates an upstream X-Request-ID (or generates one),
// echoes it on the response, and seeds the logging context so every log
// line emitted while serving the request carries request_id and
// correlation_id.
func RequestTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
