/*
 * Copyright © 2024 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package controlplane

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	muxprom "gitlab.com/hfuss/mux-prometheus/pkg/middleware"

	"github.com/gorilla/mux"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/wendi777/hyperline/internal/hyperlane"
	"github.com/wendi777/hyperline/internal/metrics"
	"github.com/wendi777/hyperline/internal/msgs"
	"github.com/wendi777/hyperline/internal/opqueue"
)

// retryResponseBody carries a server-generated correlation id back to the
// caller, so a single /retry request can be traced through the relayer's
// logs even though Publish is fire-and-forget.
type retryResponseBody struct {
	RequestID string `json:"requestId"`
}

// retryRequestBody is the JSON wire shape from spec.md §6: exactly one of
// messageId or destinationDomain must be set.
type retryRequestBody struct {
	MessageID         *string `json:"messageId"`
	DestinationDomain *uint32 `json:"destinationDomain"`
}

// Server is the relayer's control-plane HTTP surface: POST /retry plus a
// Prometheus /metrics handler, both glue rather than core (spec.md §1
// lists "settings loaders, metrics exporter, logging, CLI" as explicit
// non-goals of the core, but the wire shape of /retry is specified in §6).
type Server struct {
	router      *mux.Router
	broadcaster *Broadcaster
}

func NewServer(broadcaster *Broadcaster) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		broadcaster: broadcaster,
	}
	instrumentation := muxprom.NewMiddleware("hyperline_relayer")
	s.router.Use(instrumentation.InstrumentHandlerDuration)
	s.router.HandleFunc("/retry", s.handleRetry).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return s
}

// Handler returns the CORS-wrapped router, ready to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
	}).Handler(s.router)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body retryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, i18n.NewError(ctx, msgs.MsgInvalidRetryRequest))
		return
	}

	req, err := toRetryRequest(ctx, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	log.L(ctx).WithField("requestId", requestID).Infof("retry request accepted")

	s.broadcaster.Publish(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(retryResponseBody{RequestID: requestID})
}

func toRetryRequest(ctx context.Context, body retryRequestBody) (opqueue.RetryRequest, error) {
	hasID := body.MessageID != nil
	hasDomain := body.DestinationDomain != nil
	if hasID == hasDomain {
		return opqueue.RetryRequest{}, i18n.NewError(ctx, msgs.MsgInvalidRetryRequest)
	}
	if hasID {
		id, err := hyperlane.ParseH256(*body.MessageID)
		if err != nil {
			return opqueue.RetryRequest{}, i18n.NewError(ctx, msgs.MsgInvalidRetryRequest)
		}
		return opqueue.RetryRequest{MessageID: &id}, nil
	}
	domain := hyperlane.Domain(*body.DestinationDomain)
	return opqueue.RetryRequest{DestinationDomain: &domain}, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
