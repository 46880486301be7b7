package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gridfleet/gridfleet/server/fastview"
)

// Server serves the one-page fleet dashboard: a static grid layout
// rendered once, plus a live websocket feed of per-tick snapshots. It
// reuses the generic publish/ping-pong pump the rest of the repository's
// websocket code is built on.
type Server struct {
	addr    string
	layout  StaticLayout
	updates <-chan Snapshot
	router  *mux.Router
}

// NewServer builds a dashboard server. updates should be fed one
// Snapshot per tick (or a throttled subset); the publisher already drops
// updates that arrive faster than its publish rate.
func NewServer(addr string, layout StaticLayout, updates <-chan Snapshot) *Server {
	s := &Server{addr: addr, layout: layout, updates: updates, router: mux.NewRouter()}
	s.router.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/layout", s.serveLayout).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.serveWebsocket)
	return s
}

// Serve blocks, serving HTTP until the listener fails.
func (s *Server) Serve() error {
	if err := http.ListenAndServe(s.addr, s.router); err != nil {
		return fmt.Errorf("dashboard serve: %w", err)
	}
	return nil
}

func (s *Server) serveLayout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.layout)
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(s.updates, w, r)
	if err != nil {
		return
	}
	if err := cli.Sync(); err != nil && err != context.Canceled {
		_ = err // connection teardown is routine; nothing further to do
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_ = indexTemplate.Execute(w, s.layout)
}

var indexTemplate = template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html>
<head>
	<title>gridfleet</title>
	<style>
		body { font-family: sans-serif; }
		#grid { border-collapse: collapse; }
		#grid td { width: 18px; height: 18px; border: 1px solid #ddd; text-align: center; font-size: 10px; }
		.obstacle { background: #333; }
		.pickup { background: #cde; }
		.dropoff { background: #fdc; }
	</style>
</head>
<body>
	<table id="grid"></table>
	<pre id="status">connecting...</pre>
	<script>
		const rows = {{ .Rows }}, cols = {{ .Cols }};
		const table = document.getElementById("grid");
		for (let r = 0; r < rows; r++) {
			const tr = document.createElement("tr");
			for (let c = 0; c < cols; c++) {
				const td = document.createElement("td");
				td.id = "cell-" + r + "-" + c;
				tr.appendChild(td);
			}
			table.appendChild(tr);
		}

		fetch("/layout").then(r => r.json()).then(layout => {
			for (const cell of (layout.Cells || [])) {
				const td = document.getElementById("cell-" + cell.Row + "-" + cell.Col);
				if (!td) continue;
				if (cell.Kind === 1) td.className = "obstacle";
				else if (cell.Kind === 2) td.className = "pickup";
				else if (cell.Kind === 3) td.className = "dropoff";
			}
		});

		const ws = new WebSocket("ws://" + window.location.host + "/ws");
		ws.onmessage = function (event) {
			document.querySelectorAll("td.agent").forEach(td => td.classList.remove("agent"));
			const snap = JSON.parse(event.data);
			for (const a of (snap.Agents || [])) {
				const td = document.getElementById("cell-" + a.Row + "-" + a.Col);
				if (td) {
					td.classList.add("agent");
					td.textContent = a.Name;
				}
			}
			document.getElementById("status").textContent = JSON.stringify(snap, null, 2);
		};
	</script>
</body>
</html>
`))
