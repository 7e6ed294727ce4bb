// Package protocol implements the binary request protocol between xripc
// clients and the server.
//
// The protocol runs over a SOCK_STREAM unix socket. Clients send requests,
// the server answers every request except CmdClose with exactly one reply
// carrying the same command and FlagReply. Requests are strictly
// sequential: a client never has more than one request in flight.
//
// # Wire Format
//
// All messages are framed with a 6-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Command     │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, little-endian)      │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Session
//
//	client                              server
//	  │ Handshake(ClientHello)            │
//	  │──────────────────────────────────▶│
//	  │      Handshake|Reply(ServerHello) │ + SCM_RIGHTS(shm fd)
//	  │◀──────────────────────────────────│
//	  │ SwapchainCreate(info)             │
//	  │──────────────────────────────────▶│
//	  │  SwapchainCreate|Reply(id, count) │
//	  │◀──────────────────────────────────│
//	  │ LayerSync(layers)                 │
//	  │──────────────────────────────────▶│ handed to the render loop
//	  │           LayerSync|Reply(empty)  │ after it picked the frame up
//	  │◀──────────────────────────────────│
//
// Errors are replies with FlagError and an ErrorMessage payload. A fatal
// error is followed by the server closing the connection.
//
// # Encoding
//
//   - Fixed-width integers and floats: little-endian
//   - Strings and byte arrays: varint length prefix
//   - Layers: tagged variants, see LayerSync
package protocol
