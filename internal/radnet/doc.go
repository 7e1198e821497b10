// Package netio provides UDP transport for RADIUS packets: binding
// listen sockets for the auth/acct/CoA ports, receiving datagrams with
// source-address metadata, and sending replies back to the peer that
// sent the request.
//
// Unlike BFD, RADIUS has no GTSM/TTL requirement and no need to bind a
// dedicated source port per session: a server answers every request on
// the socket it arrived on, and a client dials one socket per remote
// port for the lifetime of its connection to that server.
package netio
