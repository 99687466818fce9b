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

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"
	"github.com/livekit/whxp/pkg/errors"
	"github.com/livekit/whxp/pkg/negotiation"
	"github.com/livekit/whxp/pkg/params"
	"github.com/livekit/whxp/pkg/types"
)

const (
	DefaultBackoff       = negotiation.DefaultBackoff
	DefaultStatsInterval = time.Second
	DefaultServePort     = 8080
)

type Config struct {
	Endpoint string     `yaml:"endpoint"` // required
	Token    string     `yaml:"token"`    // (env WHXP_TOKEN)
	Role     types.Role `yaml:"role"`

	Encoding         params.EncodingProfile             `yaml:"encoding"`
	Backoff          time.Duration                      `yaml:"backoff"`
	MethodNotAllowed negotiation.MethodNotAllowedPolicy `yaml:"method_not_allowed"`

	ICEServers              []ICEServer `yaml:"ice_servers"`
	ICEPortRange            []uint16    `yaml:"ice_port_range"`
	EnableLoopbackCandidate bool        `yaml:"enable_loopback_candidate"`

	StatsInterval  time.Duration `yaml:"stats_interval"`
	PrometheusPort int           `yaml:"prometheus_port"`
	ServePort      int           `yaml:"serve_port"`
	RecordDir      string        `yaml:"record_dir"`

	Logging  logger.Config `yaml:"logging"`
	LogLevel string        `yaml:"log_level"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

func NewConfig(confString string) (*Config, error) {
	conf := &Config{
		Token:    os.Getenv("WHXP_TOKEN"),
		Role:     types.RolePublish,
		LogLevel: "info",
	}
	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, errors.ErrCouldNotParseConfig(err)
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	conf.InitLogger()
	return conf, nil
}

// Validate fills defaults and rejects inconsistent values. The endpoint may be left
// empty when the config only drives the loopback endpoint.
func (c *Config) Validate() error {
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.ServePort == 0 {
		c.ServePort = DefaultServePort
	}

	switch c.MethodNotAllowed {
	case "":
		c.MethodNotAllowed = negotiation.MethodNotAllowedRetry
	case negotiation.MethodNotAllowedRetry, negotiation.MethodNotAllowedFail:
	default:
		return errors.ErrInvalidConfig("method_not_allowed", c.MethodNotAllowed)
	}

	switch c.Role {
	case types.RolePublish, types.RoleSubscribe:
	default:
		return errors.ErrInvalidConfig("role", c.Role)
	}

	if len(c.ICEPortRange) != 0 && len(c.ICEPortRange) != 2 {
		return errors.ErrInvalidConfig("ice_port_range", c.ICEPortRange)
	}

	profile, err := params.GetEncodingProfile(c.Encoding)
	if err != nil {
		return err
	}
	c.Encoding = profile

	return nil
}

func (c *Config) InitLogger() {
	if c.Logging.Level == "" {
		c.Logging.Level = c.LogLevel
	}

	logger.InitFromConfig(&c.Logging, "whxp")
}
