package server

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

const reloadScript = `<script data-sitepipe-reload>
(function () {
  var overlay;
  function showError(msg) {
    if (!overlay) {
      overlay = document.createElement("pre");
      overlay.style.cssText = "position:fixed;inset:auto 0 0 0;margin:0;padding:12px;" +
        "background:#b00020;color:#fff;font:13px monospace;z-index:2147483647;white-space:pre-wrap";
      document.body.appendChild(overlay);
    }
    overlay.textContent = msg;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "reload") {
        location.reload();
      } else if (msg.type === "error") {
        showError(msg.target + ": " + msg.content);
      }
    };
    ws.onclose = function () {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
</script>`

// ReloadScript renders the live reload client.
func ReloadScript() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, reloadScript)
		return err
	})
}

var bodyClose = []byte("</body>")

// injectReloadScript inserts the reload client before the last </body>, or
// appends it when the page has no body end tag.
func injectReloadScript(ctx context.Context, page []byte) ([]byte, error) {
	var script bytes.Buffer
	if err := ReloadScript().Render(ctx, &script); err != nil {
		return nil, err
	}

	i := bytes.LastIndex(bytes.ToLower(page), bodyClose)
	if i < 0 {
		return append(append([]byte{}, page...), script.Bytes()...), nil
	}

	out := make([]byte, 0, len(page)+script.Len())
	out = append(out, page[:i]...)
	out = append(out, script.Bytes()...)
	out = append(out, page[i:]...)
	return out, nil
}
