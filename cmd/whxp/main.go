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
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/capture"
	"github.com/livekit/whxp/pkg/client"
	"github.com/livekit/whxp/pkg/config"
	"github.com/livekit/whxp/pkg/endpoint"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/rtc"
	"github.com/livekit/whxp/pkg/sink"
	"github.com/livekit/whxp/pkg/stats"
	"github.com/livekit/whxp/pkg/types"
	"github.com/livekit/whxp/version"
)

const disconnectTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:        "whxp",
		Usage:       "WHIP/WHEP client",
		Version:     version.Version,
		Description: "publish media to a WHIP endpoint or play media from a WHEP endpoint. Without a command, the configured role picks publish or subscribe",
		ArgsUsage:   "[<file.ivf|file.ogg|file.h264>...]",
		Commands: []*cli.Command{
			{
				Name:      "publish",
				Usage:     "publish media files over WHIP",
				ArgsUsage: "<file.ivf|file.ogg|file.h264>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "loop",
						Usage: "restart files when they end",
					},
				},
				Action: runPublish,
			},
			{
				Name:   "subscribe",
				Usage:  "play a WHEP stream, recording it when record_dir is set",
				Action: runSubscribe,
			},
			{
				Name:   "serve",
				Usage:  "run a loopback WHIP/WHEP endpoint",
				Action: runServe,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "whxp yaml config file",
				Sources: cli.EnvVars("WHXP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-body",
				Usage:   "whxp yaml config body",
				Sources: cli.EnvVars("WHXP_CONFIG_BODY"),
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "WHIP or WHEP endpoint, overrides the config",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "bearer token, overrides the config",
			},
		},
		Action: runRole,
	}
}

func runRole(ctx context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	switch conf.Role {
	case types.RoleSubscribe:
		return runSubscribe(ctx, c)
	default:
		return runPublish(ctx, c)
	}
}

func runPublish(ctx context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if c.Args().Len() == 0 {
		return errors.ErrNoLocalTracks
	}

	var opts []capture.Option
	if c.Bool("loop") {
		opts = append(opts, capture.WithLoop())
	}

	var tracks []types.LocalTrack
	var fileTracks []*capture.FileTrack
	for _, path := range c.Args().Slice() {
		t, err := capture.NewFileTrack(path, logger.GetLogger(), opts...)
		if err != nil {
			return err
		}
		tracks = append(tracks, t)
		fileTracks = append(fileTracks, t)
	}

	ms, err := rtc.NewPeerSession(conf, logger.GetLogger())
	if err != nil {
		return err
	}

	p, err := newParams(conf)
	if err != nil {
		return err
	}

	// capture starts once media can flow
	var startOnce sync.Once
	failed := make(chan struct{})
	var failOnce sync.Once
	p.OnConnectionStateChange = func(state types.ConnectionState) {
		switch state {
		case types.ConnectionStateConnected:
			startOnce.Do(func() {
				for _, t := range fileTracks {
					t.Start()
				}
			})
		case types.ConnectionStateFailed:
			failOnce.Do(func() { close(failed) })
		}
	}

	pub, err := client.NewPublisher(ctx, p, ms, tracks)
	if err != nil {
		_ = ms.Close()
		return err
	}

	done := make(chan struct{})
	go func() {
		for _, t := range fileTracks {
			<-t.Done()
		}
		close(done)
	}()

	return waitAndDisconnect(pub, failed, done)
}

func runSubscribe(ctx context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	ms, err := rtc.NewPeerSession(conf, logger.GetLogger())
	if err != nil {
		return err
	}

	p, err := newParams(conf)
	if err != nil {
		return err
	}
	p.LevelSink = sink.NewLevelBar(os.Stdout, "audio")
	if conf.RecordDir != "" {
		fs, err := sink.NewFileSink(conf.RecordDir, logger.GetLogger())
		if err != nil {
			return err
		}
		p.RenderSink = fs
	}

	failed := make(chan struct{})
	var failOnce sync.Once
	p.OnConnectionStateChange = func(state types.ConnectionState) {
		if state == types.ConnectionStateFailed {
			failOnce.Do(func() { close(failed) })
		}
	}

	sub, err := client.NewSubscriber(ctx, p, ms)
	if err != nil {
		_ = ms.Close()
		return err
	}

	return waitAndDisconnect(sub, failed, nil)
}

func runServe(ctx context.Context, c *cli.Command) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if err = setupMetricsServer(conf, prometheus.DefaultGatherer); err != nil {
		return err
	}

	srv := endpoint.NewServer(conf, logger.GetLogger())
	if err = srv.Start(); err != nil {
		return err
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-stopChan
	logger.Infow("exit requested, shutting down", "signal", sig)

	stopCtx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}

type session interface {
	Disconnect(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
}

func waitAndDisconnect(s session, failed, done <-chan struct{}) error {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopChan:
		logger.Infow("exit requested, disconnecting", "signal", sig)
	case <-failed:
		logger.Infow("connection failed, disconnecting")
	case <-done:
		logger.Infow("media finished, disconnecting")
	case <-s.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.Disconnect(ctx); err != nil {
		return err
	}
	return s.Err()
}

func newParams(conf *config.Config) (client.Params, error) {
	p := client.NewParams(conf)
	p.Logger = logger.GetLogger()

	reg := prometheus.NewRegistry()
	metrics, err := stats.NewMetrics(reg)
	if err != nil {
		return p, err
	}
	p.Metrics = metrics

	return p, setupMetricsServer(conf, reg)
}

func setupMetricsServer(conf *config.Config, g prometheus.Gatherer) error {
	if conf.PrometheusPort == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", conf.PrometheusPort), mux)
	}()

	return nil
}

func getConfig(c *cli.Command) (*config.Config, error) {
	configFile := c.String("config")
	configBody := c.String("config-body")
	if configBody == "" && configFile != "" {
		content, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		configBody = string(content)
	}

	conf, err := config.NewConfig(configBody)
	if err != nil {
		return nil, err
	}
	if url := c.String("url"); url != "" {
		conf.Endpoint = url
	}
	if token := c.String("token"); token != "" {
		conf.Token = token
	}
	return conf, nil
}
