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

package negotiation

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/sdp/v3"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/signaling"
	"github.com/livekit/whxp/pkg/types"
)

const DefaultBackoff = 5 * time.Second

// MethodNotAllowedPolicy decides what a 405 from the endpoint does to the retry loop.
type MethodNotAllowedPolicy string

const (
	MethodNotAllowedRetry MethodNotAllowedPolicy = "retry"
	MethodNotAllowedFail  MethodNotAllowedPolicy = "fail"
)

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Attempt describes a single offer POST.
type Attempt struct {
	Number    int
	OfferBody string
	Status    int
	Outcome   Outcome
	Location  string
	Err       error
}

type Options struct {
	Backoff          time.Duration
	MethodNotAllowed MethodNotAllowedPolicy
	Protocol         string

	Clock     clock.Clock
	Logger    logger.Logger
	OnAttempt func(a Attempt)
}

type Engine struct {
	transport signaling.Transport
	opts      Options
}

func NewEngine(transport signaling.Transport, opts Options) *Engine {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MethodNotAllowed == "" {
		opts.MethodNotAllowed = MethodNotAllowedRetry
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Engine{
		transport: transport,
		opts:      opts,
	}
}

// Negotiate runs the offer/answer exchange until the endpoint answers with 201 Created.
// The returned location is the Location header verbatim and may be empty or relative.
// The loop only stops early when the media session is closed, ctx is done, or a 405 is
// received under MethodNotAllowedFail. If the answer of a 201 cannot be applied, the
// location is returned along with the error so the resource can still be released.
func (e *Engine) Negotiate(ctx context.Context, ms types.MediaSession, endpoint, credential string) (string, error) {
	offer, err := ms.CreateOffer()
	if err != nil {
		return "", err
	}
	if err = ms.SetLocalDescription(offer); err != nil {
		return "", err
	}

	if d, ok := ms.(types.LocalDescriber); ok {
		if sd := d.LocalDescription(); sd != "" {
			offer = sd
		}
	}
	e.opts.Logger.Debugw("client offer sdp", "sdp", offer)

	for n := 1; ms.ConnectionState() != types.ConnectionStateClosed; n++ {
		attempt := e.attempt(ctx, ms, n, endpoint, credential, offer)
		if e.opts.OnAttempt != nil {
			e.opts.OnAttempt(attempt)
		}

		switch attempt.Outcome {
		case OutcomeAccepted:
			return attempt.Location, nil
		case OutcomeFatal:
			// set when the server created a resource whose answer could not be applied
			return attempt.Location, attempt.Err
		}

		select {
		case <-e.opts.Clock.After(e.opts.Backoff):
		case <-ctx.Done():
			if ms.ConnectionState() == types.ConnectionStateClosed {
				return "", errors.ErrSessionClosed
			}
			return "", ctx.Err()
		}
	}

	return "", errors.ErrSessionClosed
}

func (e *Engine) attempt(ctx context.Context, ms types.MediaSession, n int, endpoint, credential, offer string) Attempt {
	a := Attempt{
		Number:    n,
		OfferBody: offer,
		Outcome:   OutcomeRetryable,
	}

	resp, err := e.transport.PostOffer(ctx, endpoint, credential, offer)
	if err != nil {
		e.opts.Logger.Warnw("offer request failed", err, "attempt", n)
		a.Err = err
		return a
	}
	a.Status = resp.StatusCode

	switch resp.StatusCode {
	case http.StatusCreated:
		e.opts.Logger.Debugw("server answer sdp", "sdp", resp.Body)
		e.inspectAnswer(resp.Body)

		if err = ms.SetRemoteDescription(resp.Body); err != nil {
			e.opts.Logger.Warnw("could not apply answer", err)
			a.Outcome = OutcomeFatal
			a.Location = resp.Location
			a.Err = err
			return a
		}

		a.Outcome = OutcomeAccepted
		a.Location = resp.Location

	case http.StatusMethodNotAllowed:
		a.Err = errors.NewConfigurationError(endpoint, e.opts.Protocol)
		e.opts.Logger.Errorw("endpoint rejected offer", a.Err, "attempt", n, "policy", e.opts.MethodNotAllowed)
		if e.opts.MethodNotAllowed == MethodNotAllowedFail {
			a.Outcome = OutcomeFatal
		}

	default:
		a.Err = errors.NewProtocolError(resp.StatusCode, resp.Body)
		e.opts.Logger.Errorw("offer rejected", a.Err, "attempt", n, "status", resp.StatusCode)
	}

	return a
}

// inspectAnswer logs media sections the server declined. It never fails the negotiation.
func (e *Engine) inspectAnswer(answer string) {
	parsed := sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(answer)); err != nil {
		e.opts.Logger.Debugw("could not parse answer", "error", err)
		return
	}

	for _, m := range parsed.MediaDescriptions {
		// Pion puts a media description with port 0 or no attributes for unsupported codecs
		if m.MediaName.Port.Value == 0 || len(m.Attributes) == 0 {
			e.opts.Logger.Infow("media section declined by server", "media", m.MediaName.Media)
		}
	}
}
