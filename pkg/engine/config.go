package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/atlassian/gossipmember"
)

// ErrNoIdentity is returned when the node's own address can not be determined.
// It is fatal, a node without an identity must not start.
var ErrNoIdentity = errors.New("unable to determine own address")

// Config holds everything an Engine needs to know about its cluster.
type Config struct {
	// Self is this node's address.
	Self gossipmember.Address
	// Bootstrap is the introducer every joining node targets.  nil means
	// there is no introducer, and this node starts the group.
	Bootstrap *gossipmember.Address
	// MaxNodes bounds the valid node ids to [0, MaxNodes).
	MaxNodes int
	// RemoveThreshold is the number of silent ticks before a peer is evicted.
	RemoveThreshold gossipmember.Tick
	// TickPeriod is the wall time between ticks when driven by Run.
	TickPeriod time.Duration
	// GossipFanout is the number of random peers gossiped to per tick, 0
	// means every peer in the table.
	GossipFanout int
}

// DefaultConfig returns a Config for self with every other option at its default.
func DefaultConfig(self gossipmember.Address) Config {
	bootstrap := gossipmember.MustParseAddress(gossipmember.DefaultBootstrap)
	return Config{
		Self:            self,
		Bootstrap:       &bootstrap,
		MaxNodes:        gossipmember.DefaultMaxNodes,
		RemoveThreshold: gossipmember.DefaultRemoveThreshold,
		TickPeriod:      gossipmember.DefaultTickPeriod,
		GossipFanout:    gossipmember.DefaultGossipFanout,
	}
}

// IsBootstrap reports if this node starts the group rather than joining it.
func (c Config) IsBootstrap() bool {
	return c.Bootstrap == nil || *c.Bootstrap == c.Self
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var err error
	if c.MaxNodes <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", gossipmember.ParamMaxNodes))
	} else if c.Self.ID < 0 || int(c.Self.ID) >= c.MaxNodes {
		err = multierr.Append(err, fmt.Errorf("%s id %d outside [0, %d)", gossipmember.ParamSelf, c.Self.ID, c.MaxNodes))
	}
	if c.RemoveThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", gossipmember.ParamRemoveThreshold))
	}
	if c.TickPeriod <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", gossipmember.ParamTickPeriod))
	}
	if c.GossipFanout < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be zero or positive", gossipmember.ParamGossipFanout))
	}
	return err
}

// NewConfigFromViper builds a Config from the parameters registered by
// gossipmember.AddFlags.  A missing or malformed self address is reported
// as ErrNoIdentity.
func NewConfigFromViper(v *viper.Viper) (Config, error) {
	v.SetDefault(gossipmember.ParamBootstrap, gossipmember.DefaultBootstrap)
	v.SetDefault(gossipmember.ParamMaxNodes, gossipmember.DefaultMaxNodes)
	v.SetDefault(gossipmember.ParamRemoveThreshold, gossipmember.DefaultRemoveThreshold)
	v.SetDefault(gossipmember.ParamTickPeriod, gossipmember.DefaultTickPeriod)
	v.SetDefault(gossipmember.ParamGossipFanout, gossipmember.DefaultGossipFanout)

	self, err := gossipmember.ParseAddress(v.GetString(gossipmember.ParamSelf))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	cfg := Config{
		Self:            self,
		MaxNodes:        v.GetInt(gossipmember.ParamMaxNodes),
		RemoveThreshold: gossipmember.Tick(v.GetInt64(gossipmember.ParamRemoveThreshold)),
		TickPeriod:      v.GetDuration(gossipmember.ParamTickPeriod),
		GossipFanout:    v.GetInt(gossipmember.ParamGossipFanout),
	}

	if s := v.GetString(gossipmember.ParamBootstrap); s != "" {
		bootstrap, err := gossipmember.ParseAddress(s)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", gossipmember.ParamBootstrap, err)
		}
		cfg.Bootstrap = &bootstrap
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
