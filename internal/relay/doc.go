// Package relay implements a concurrent TCP text-broadcast relay.
//
// A Server accepts connections on a single listening address and spawns one
// worker per connection. Every read from a peer is decoded as trimmed UTF-8
// text and handed to the Broadcaster, which enqueues it on the outbound
// channel of every other peer in the shared Registry. Peers never receive
// their own messages back.
package relay
