package tracing

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

// DialWebsocket opens a websocket connection inside a client span and sends
// the span's traceparent with the handshake. A nil dialer uses
// websocket.DefaultDialer; header is not modified.
func DialWebsocket(ctx context.Context, client *Client, dialer *websocket.Dialer, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, span := client.start(ctx, "WS "+url, []SpanOption{
		WithKind(KindClient),
		WithAttributes(map[string]string{AttrHTTPURL: url}),
	})
	defer span.Finish()

	handshake := header.Clone()
	if handshake == nil {
		handshake = http.Header{}
	}
	Inject(span, handshake)

	conn, resp, err := dialer.DialContext(ctx, url, handshake)
	if resp != nil {
		span.SetStatus(resp.StatusCode)
		span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(resp.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
	}
	return conn, resp, err
}
