package gossipmember

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultBootstrap is the well-known introducer every joining node targets.
const DefaultBootstrap = "1:0"

const (
	// DefaultMaxNodes is the default valid node id range bound, ids are valid in [0, DefaultMaxNodes).
	DefaultMaxNodes = 10
	// DefaultRemoveThreshold is the default number of silent ticks before a peer is evicted.
	DefaultRemoveThreshold = 20
	// DefaultTickPeriod is the default wall time between ticks.
	DefaultTickPeriod = 1 * time.Second
	// DefaultGossipFanout is the default number of peers gossiped to per tick, 0 means every peer.
	DefaultGossipFanout = 0
	// DefaultInboundBuffer is the default size of a node's inbound queue.
	DefaultInboundBuffer = 1024
	// DefaultJoinTimeout is the default time to wait for a join response before giving up.
	DefaultJoinTimeout = 30 * time.Second
	// DefaultRedisAddr is the default address of the Redis server used as transport.
	DefaultRedisAddr = "127.0.0.1:6379"
	// DefaultNamespace is the default prefix of the Redis channels.
	DefaultNamespace = "gossipmember"
	// DefaultWebAddr is the default address of the admin web server.
	DefaultWebAddr = "127.0.0.1:8080"
)

const (
	// ParamSelf is the name of parameter with this node's address.
	ParamSelf = "self"
	// ParamBootstrap is the name of parameter with the introducer address, empty for none.
	ParamBootstrap = "bootstrap"
	// ParamMaxNodes is the name of parameter with the valid node id range bound.
	ParamMaxNodes = "max-nodes"
	// ParamRemoveThreshold is the name of parameter with the eviction threshold in ticks.
	ParamRemoveThreshold = "remove-threshold"
	// ParamTickPeriod is the name of parameter with the wall time between ticks.
	ParamTickPeriod = "tick-period"
	// ParamGossipFanout is the name of parameter with the number of peers gossiped to per tick.
	ParamGossipFanout = "gossip-fanout"
	// ParamInboundBuffer is the name of parameter with the size of the inbound queue.
	ParamInboundBuffer = "inbound-buffer"
	// ParamJoinTimeout is the name of parameter with the join timeout.
	ParamJoinTimeout = "join-timeout"
	// ParamRedisAddr is the name of parameter with the Redis address.
	ParamRedisAddr = "redis-addr"
	// ParamNamespace is the name of parameter with the Redis channel prefix.
	ParamNamespace = "namespace"
	// ParamWebAddr is the name of parameter with the admin web server address.
	ParamWebAddr = "web-addr"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamSelf, "", "Address of this node, as id:port")
	fs.String(ParamBootstrap, DefaultBootstrap, "Address of the introducer node, empty if there is none")
	fs.Int(ParamMaxNodes, DefaultMaxNodes, "Node ids are valid in [0, max-nodes)")
	fs.Int64(ParamRemoveThreshold, DefaultRemoveThreshold, "Ticks of silence before a peer is removed")
	fs.Duration(ParamTickPeriod, DefaultTickPeriod, "Wall time between protocol ticks")
	fs.Int(ParamGossipFanout, DefaultGossipFanout, "Peers to gossip to per tick, 0 for every peer")
	fs.Int(ParamInboundBuffer, DefaultInboundBuffer, "Size of the inbound message queue")
	fs.Duration(ParamJoinTimeout, DefaultJoinTimeout, "How long to wait for a join response")
	fs.String(ParamRedisAddr, DefaultRedisAddr, "Redis address")
	fs.String(ParamNamespace, DefaultNamespace, "Redis channel namespace")
	fs.String(ParamWebAddr, DefaultWebAddr, "Address of the admin web server, empty to disable")
}
