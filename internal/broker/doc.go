// Package broker maintains the bridge's single session with the pub/sub
// broker. The transport is chosen by the URL scheme: MQTT via paho, or Redis
// pub/sub via go-redis. Both hand raw payload bytes to one registered handler
// in the order the transport delivered them.
package broker
