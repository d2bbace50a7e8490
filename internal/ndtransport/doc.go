// Package ndtransport implements nd6.Transport on top of a raw ICMPv6
// socket, replacing the hand-rolled wire-format construction the core
// package deliberately has no opinion about with a real dependency: every
// ND message is built with gopacket and its layers package instead of a
// byte-offset packer, and sent over a golang.org/x/net/icmp PacketConn the
// same way the constrained-node source this module generalizes frames its
// own RA socket.
package ndtransport
