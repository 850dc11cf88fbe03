// Package wsx is a server-side WebSocket implementation (RFC 6455, versions 8 and 13).
// It accepts HTTP Upgrade requests from an existing net/http server, promotes qualifying
// connections into long-lived bidirectional framed channels, and exposes a multi-client
// messaging API to application code. Each inbound application message is routed to a
// logical topic derived from the request path; outbound messages and liveness probes are
// relayed back to identified peers by client id.
//
// Mount a *Server on an http.ServeMux (or any net/http router) to accept connections:
//
//	srv := wsx.NewServer(wsx.DefaultConfig())
//	srv.OnOpen(func(id string) { log.Println("open", id) })
//	srv.On("/chat", func(id string, payload []byte) {
//		srv.Send(id, payload, true)
//	})
//	http.Handle("/chat", srv)
//
// permessage-deflate, subprotocol negotiation, and client-mode operation are not
// implemented.
package wsx
