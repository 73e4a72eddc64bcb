package livereload

import "net/http"

// clientScript connects to the hub at the script's own URL without the .js
// suffix, so it works behind any host and port. Browsers without WebSocket
// support read the event stream below it instead.
const clientScript = `(function () {
  'use strict';
  var src = document.currentScript && document.currentScript.src;
  if (!src) { return; }
  var url = new URL(src);
  url.pathname = url.pathname.replace(/\.js$/, '');
  url.search = '';

  function refreshStyles() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = new URL(links[i].href);
      href.searchParams.set('_lr', Date.now());
      links[i].href = href.toString();
    }
  }

  function handle(data) {
    var msg;
    try { msg = JSON.parse(data); } catch (e) { return; }
    if (msg.type === 'css') { refreshStyles(); } else { window.location.reload(); }
  }

  function connect() {
    var ws = new URL(url.toString());
    ws.protocol = ws.protocol === 'https:' ? 'wss:' : 'ws:';
    var sock = new WebSocket(ws.toString());
    sock.onmessage = function (ev) { handle(ev.data); };
    sock.onclose = function () { setTimeout(connect, 1000); };
  }

  if (window.WebSocket) {
    connect();
  } else if (window.EventSource) {
    var es = new EventSource(url.toString() + '/events');
    es.addEventListener('reload', function (ev) { handle(ev.data); });
    es.addEventListener('css', function (ev) { handle(ev.data); });
  }
})();
`

// ClientScript serves the browser side of live reload. Pages opt in with
// <script src="/__livereload.js"></script>.
func ClientScript() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(clientScript))
	})
}
