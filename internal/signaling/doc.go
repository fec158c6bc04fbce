// Package signaling implements the client side of the Sora signaling
// protocol: a WebSocket control channel that negotiates one WebRTC media
// session through connect/offer/answer, relays local ICE candidates, handles
// update renegotiation, forwards notify events and answers ping keepalives.
//
// All session state is owned by a single goroutine that drains a mailbox.
// The read loop, media completions and ICE state changes reach that state
// only by posting tasks to the mailbox.
package signaling
