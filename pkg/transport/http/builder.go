package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// DefaultProto is the scheme assumed when x-forwarded-proto is absent. The
// adapter normally sits behind a TLS-terminating proxy.
const DefaultProto = "https"

const (
	headerForwardedHost  = "x-forwarded-host"
	headerForwardedProto = "x-forwarded-proto"
	headerHost           = "host"
)

// requestBuilder constructs Fetch-style requests from incoming messages.
type requestBuilder struct {
	defaultProto string
}

// build turns in into a Fetch-style request and wires its Signal to the
// close notification of out. The Signal exists and is bound to the request
// before OnClose is registered. The returned stop function unregisters the
// close notification; callers run it once the exchange is over.
func (b requestBuilder) build(in IncomingMessage, out OutgoingMessage) (*fetch.Request, func() bool, error) {
	headers := TranslateIncoming(in.RawHeaders())

	target, err := b.resolveURL(headers, in.RequestURI())
	if err != nil {
		return nil, nil, err
	}

	method := in.Method()
	init := fetch.RequestInit{
		Method:  method,
		Headers: headers,
		Signal:  fetch.NewSignal(in.Context()),
	}
	if fetch.MethodAllowsBody(method) {
		if body := in.Body(); body != nil {
			init.Body = body
		}
	}

	req, err := fetch.NewRequest(target, init)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", transport.ErrInvalidURL, err)
	}

	signal := req.Signal()
	stop := out.OnClose(func() {
		signal.Abort(transport.ErrConnectionClosed)
	})
	return req, stop, nil
}

// resolveURL assembles scheme://host/path?query from the forwarded headers,
// the host header and the raw request URI.
func (b requestBuilder) resolveURL(headers fetch.Headers, requestURI string) (string, error) {
	host := firstListValue(headers, headerForwardedHost)
	if host == "" {
		host = firstListValue(headers, headerHost)
	}
	if host == "" {
		return "", transport.ErrMissingHost
	}
	if strings.ContainsAny(host, "/?#@ \t") {
		return "", fmt.Errorf("%w: host %q", transport.ErrInvalidURL, host)
	}

	proto := strings.ToLower(firstListValue(headers, headerForwardedProto))
	if proto == "" {
		proto = b.defaultProto
	}
	if proto == "" {
		proto = DefaultProto
	}

	if requestURI == "" {
		requestURI = "/"
	}
	if !strings.HasPrefix(requestURI, "/") {
		return "", fmt.Errorf("%w: request target %q", transport.ErrInvalidURL, requestURI)
	}

	target := proto + "://" + host + requestURI
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", transport.ErrInvalidURL, err)
	}
	if u.Scheme != proto || u.Host != host {
		return "", fmt.Errorf("%w: %q", transport.ErrInvalidURL, target)
	}
	return target, nil
}

// firstListValue returns the first element of a header that proxies may
// extend into a comma-separated list, such as x-forwarded-host when several
// proxies are chained.
func firstListValue(headers fetch.Headers, name string) string {
	v, ok := headers.First(name)
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
