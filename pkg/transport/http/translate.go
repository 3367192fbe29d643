package http

import (
	"net/http"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// TranslateIncoming converts socket-style header entries into Fetch-style
// Headers. A Multi value appends each element under the same name in order;
// a Single value appends one. Values are not validated.
func TranslateIncoming(raw []fetch.RawHeader) fetch.Headers {
	var h fetch.Headers
	for _, entry := range raw {
		h.AppendValue(entry.Name, entry.Value)
	}
	return h
}

// TranslateOutgoing replays h onto dst. Every entry becomes its own header
// line, so a name with N values is written N times and never comma-joined.
func TranslateOutgoing(h fetch.Headers, dst http.Header) {
	for name, value := range h.All() {
		dst.Add(name, value)
	}
}
