// Package mqttwire implements the client side of the MQTT 5 wire protocol:
// a codec for every control packet and the enhanced authentication
// exchange, including reauthentication.
//
// This package implements the MQTT Version 5.0 OASIS Standard:
// https://docs.oasis-open.org/mqtt/mqtt/v5.0/mqtt-v5.0.html
//
// # Packets
//
// Every control packet has a struct: ConnectPacket, ConnackPacket,
// PublishPacket, PubackPacket, PubrecPacket, PubrelPacket, PubcompPacket,
// SubscribePacket, SubackPacket, UnsubscribePacket, UnsubackPacket,
// PingreqPacket, PingrespPacket, DisconnectPacket and AuthPacket.
//
//	pkt, n, err := mqttwire.ReadPacket(conn, maxPacketSize)
//	n, err := mqttwire.WritePacket(conn, packet, maxPacketSize)
//
// Encoding sizes a packet in two passes, property length first and then
// remaining length, before writing anything. When the server announced a
// maximum packet size, acknowledgements are shrunk by dropping the reason
// string and then the user properties; packets that still do not fit fail
// with an error wrapping ErrPacketTooLarge. Reason code and property block
// are left out whenever the reason code is the type's default and there are
// no properties.
//
// Encoders hands out pooled, single-type encoders for hot paths:
//
//	encoders := mqttwire.NewEncoders()
//	n, err := encoders.WritePacket(conn, &mqttwire.PubrecPacket{PacketID: 5}, 0)
//
// # Connections and enhanced authentication
//
// A Connection runs the CONNECT/CONNACK handshake and the AUTH exchanges
// on an event loop. Enhanced authentication is supplied by an
// EnhancedAuthProvider; SCRAMProvider implements the SCRAM methods.
//
//	conn, err := mqttwire.Dial(ctx,
//	    mqttwire.WithTransport(mqttwire.TransportConfig{ServerAddress: "tls://broker:8883"}),
//	    mqttwire.WithEnhancedAuth(mqttwire.NewSCRAMProvider(mqttwire.SCRAMHashSHA256, "user", "secret", nil)),
//	)
//	connack, err := conn.Connect(ctx)
//	err = conn.ReAuth(ctx)
//
// Only one exchange runs at a time: ReAuth fails with ErrReAuthPending while
// another is in progress and with ErrNotConnected before the connection was
// accepted. The outcome is reported through a Flow, which can be cancelled
// without stopping the exchange itself.
//
// Once connected, PINGREQ is sent whenever nothing was written for the keep
// alive interval (the Server Keep Alive from CONNACK if present). A missing
// PINGRESP closes the connection with ErrKeepAliveTimeout.
//
// # Transports
//
// TransportConfig dials TCP, TLS, WebSocket (gorilla/websocket), QUIC
// (quic-go) and Unix sockets, optionally through an HTTP CONNECT or SOCKS5
// proxy. LoadConfig reads the same settings from YAML.
package mqttwire
