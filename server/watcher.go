package server

import (
	"net/http"
	"net/url"
)

// Call is one HTTP call as observed by the server.
type Call struct {
	URL    *url.URL
	Method string
	Status int

	RequestHeader http.Header
	RequestBody   []byte

	ResponseHeader http.Header
	ResponseBody   []byte
}

type callWatcher struct {
	fn    func(Call)
	paths map[string]struct{}
}

// newCallWatcher watches the given paths, or every path if none are given.
func newCallWatcher(fn func(Call), paths ...string) callWatcher {
	watch := make(map[string]struct{}, len(paths))

	for _, path := range paths {
		watch[path] = struct{}{}
	}

	return callWatcher{fn: fn, paths: watch}
}

func (w *callWatcher) isWatching(path string) bool {
	if len(w.paths) == 0 {
		return true
	}

	_, ok := w.paths[path]

	return ok
}

func (w *callWatcher) publish(call Call) {
	w.fn(call)
}
