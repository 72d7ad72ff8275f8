// Package stream adapts a pull-based ports.EventSource to a push-based
// Server-Sent Events transport.
//
// Wire format:
//
//	event: screen_update
//	data: <base64 frame>
//
//	event: end
//	data:
//
//	event: error
//	data: {"type":"guest_trap","message":"..."}
//
//	: keep-alive
//
// The adapter pulls the next event only after the previous one has been
// written and flushed. Idle keep-alive comments are independent of frame
// pacing and never count as frames.
package stream
