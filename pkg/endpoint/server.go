// Copyright 2026 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/psrpc"
	"github.com/livekit/whxp/pkg/config"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/signaling"
)

const (
	sdpResponseTimeout = 5 * time.Second
	maxOfferSize       = 1 << 20
)

// Server is a loopback WHIP/WHEP endpoint. Media published on /whip/{stream_key} is
// relayed to subscribers of /whep/{stream_key}.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	conf   *config.Config
	logger logger.Logger
	router *mux.Router
	hs     *http.Server

	lock      sync.Mutex
	streams   map[string]*relayStream
	resources map[string]*resource
}

func NewServer(conf *config.Config, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Server{
		conf:      conf,
		logger:    l,
		streams:   make(map[string]*relayStream),
		resources: make(map[string]*resource),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.router = s.newRouter()

	return s
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/{app:whip|whep}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer func() {
			s.handleError(err, w)
		}()

		streamKey := "default"
		if s.conf.Token == "" {
			// without a configured token, the bearer names the stream
			if bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); bearer != "" {
				streamKey = bearer
			}
		}

		err = s.handleOffer(w, r, streamKey)
	}).Methods("POST")

	r.HandleFunc("/{app:whip|whep}/{stream_key}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer func() {
			s.handleError(err, w)
		}()

		err = s.handleOffer(w, r, mux.Vars(r)["stream_key"])
	}).Methods("POST")

	r.HandleFunc("/{app:whip|whep}", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, false)
		w.WriteHeader(http.StatusNoContent)
	}).Methods("OPTIONS")

	r.HandleFunc("/{app:whip|whep}/{stream_key}", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, false)
		w.WriteHeader(http.StatusNoContent)
	}).Methods("OPTIONS")

	// End
	r.HandleFunc("/{app:whip|whep}/{stream_key}/{resource_id}", func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer func() {
			s.handleError(err, w)
		}()

		resourceID := mux.Vars(r)["resource_id"]
		s.logger.Infow("handling delete request", "resourceID", resourceID)

		w.Header().Set("Access-Control-Allow-Origin", "*")
		if !s.closeResource(resourceID) {
			err = psrpc.NewErrorf(psrpc.NotFound, "resource %s not found", resourceID)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods("DELETE")

	// Trickle, ICE Restart unimplemented for now
	r.HandleFunc("/{app:whip|whep}/{stream_key}/{resource_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}).Methods("PATCH")

	r.HandleFunc("/{app:whip|whep}/{stream_key}/{resource_id}", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, true)
	}).Methods("OPTIONS")

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Infow("starting endpoint", "port", s.conf.ServePort)

	s.hs = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.conf.ServePort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		err := s.hs.ListenAndServe()
		if err != http.ErrServerClosed {
			s.logger.Errorw("endpoint start failed", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	for _, id := range s.ResourceIDs() {
		s.closeResource(id)
	}

	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

func (s *Server) ResourceIDs() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleError(err error, w http.ResponseWriter) {
	var psrpcErr psrpc.Error
	switch {
	case errors.As(err, &psrpcErr):
		w.WriteHeader(psrpcErr.ToHttp())
		_, _ = w.Write([]byte(psrpcErr.Error()))
	case err == nil:
		// Nothing, we already responded
	default:
		s.logger.Debugw("request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request, streamKey string) error {
	if s.conf.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.conf.Token {
		return psrpc.NewErrorf(psrpc.Unauthenticated, "invalid bearer token")
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, signaling.ContentTypeSDP) {
		return psrpc.NewErrorf(psrpc.InvalidArgument, "unexpected content type %q", ct)
	}

	app := mux.Vars(r)["app"]

	offer, err := io.ReadAll(io.LimitReader(r.Body, maxOfferSize))
	if err != nil {
		return err
	}

	s.logger.Debugw("new offer", "app", app, "streamKey", streamKey, "sdpOffer", string(offer))

	ctx, done := context.WithTimeout(s.ctx, sdpResponseTimeout)
	defer done()

	var resourceID, answer string
	if app == "whip" {
		resourceID, answer, err = s.ingest(ctx, streamKey, string(offer))
	} else {
		resourceID, answer, err = s.egress(ctx, streamKey, string(offer))
	}
	if err != nil {
		return err
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", "Location")
	w.Header().Set("Content-Type", signaling.ContentTypeSDP)
	w.Header().Set("Location", fmt.Sprintf("/%s/%s/%s", app, streamKey, resourceID))
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(answer))

	return nil
}

func setCORSHeaders(w http.ResponseWriter, resourceEndpoint bool) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	if resourceEndpoint {
		w.Header().Set("Access-Control-Allow-Methods", "PATCH, OPTIONS, DELETE")
	} else {
		w.Header().Set("Accept-Post", signaling.ContentTypeSDP)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "Location")
	}
}
