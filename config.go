// Copyright 2023 TrueLayer Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ginepro

import (
	"fmt"
	"time"

	"github.com/vrischmann/envconfig"
)

// EnvConfig mirrors the builder's configuration surface for services that
// prefer to configure their upstream channels from the environment
// rather than hand-written builder calls. This supplements the
// distilled spec with a feature the original Rust crate left to its
// caller: most long-running service binaries wire config from env vars,
// not code.
type EnvConfig struct {
	Hostname              string        `envconfig:"GRPC_HOSTNAME"`
	Port                  int           `envconfig:"GRPC_PORT"`
	ProbeInterval         time.Duration `envconfig:"GRPC_PROBE_INTERVAL,optional"`
	ResolutionStrategy    string        `envconfig:"GRPC_RESOLUTION_STRATEGY,optional"` // "eager" or "lazy"
	ResolutionTimeout     time.Duration `envconfig:"GRPC_RESOLUTION_TIMEOUT,optional"`
	ConnectTimeout        time.Duration `envconfig:"GRPC_CONNECT_TIMEOUT,optional"`
	RequestTimeout        time.Duration `envconfig:"GRPC_REQUEST_TIMEOUT,optional"`
	InitialLookupDeadline time.Duration `envconfig:"GRPC_INITIAL_LOOKUP_DEADLINE,optional"`
}

// LoadEnvConfig populates an EnvConfig from the process environment
// using the GRPC_* variable names documented on EnvConfig's fields.
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Init(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("ginepro: failed to load config from environment: %w", err)
	}
	return cfg, nil
}

// Builder converts the env-sourced configuration into a Builder, ready
// for further WithXxx overrides or an immediate call to Channel.
func (c EnvConfig) Builder() (*Builder, error) {
	b := NewBuilder(c.Hostname, c.Port)

	switch c.ResolutionStrategy {
	case "", "lazy":
		b.WithResolutionStrategy(StrategyLazy)
	case "eager":
		b.WithResolutionStrategy(StrategyEager)
	default:
		return nil, fmt.Errorf("ginepro: invalid GRPC_RESOLUTION_STRATEGY %q (want \"eager\" or \"lazy\")", c.ResolutionStrategy)
	}

	if c.ProbeInterval > 0 {
		b.WithProbeInterval(c.ProbeInterval)
	}
	if c.ResolutionTimeout > 0 {
		b.WithResolutionTimeout(c.ResolutionTimeout)
	}
	if c.ConnectTimeout > 0 {
		b.WithConnectTimeout(c.ConnectTimeout)
	}
	if c.RequestTimeout > 0 {
		b.WithRequestTimeout(c.RequestTimeout)
	}
	if c.InitialLookupDeadline > 0 {
		b.WithInitialLookupDeadline(c.InitialLookupDeadline)
	}
	return b, nil
}
