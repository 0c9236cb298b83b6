// Package discovery advertises and browses for timer servers on the local
// network via mDNS/DNS-SD, so a client does not need a configured address
// to find one. It is optional: a server that never calls Advertise is
// reachable only by a client dialing a known address directly.
package discovery
