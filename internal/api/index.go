package api

import "html/template"

type indexData struct {
	Host string
	Port int
}

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// indexHTML is the viewer page: video pane, map pane, connect form, status log
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CamLink Viewer</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            margin: 0;
            padding: 20px;
            background: #f5f5f5;
        }
        .grid {
            display: grid;
            grid-template-columns: 2fr 1fr;
            gap: 20px;
        }
        .panel {
            background: white;
            padding: 16px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        h1 {
            color: #333;
            margin-top: 0;
        }
        #video {
            width: 100%;
            background: #000;
            min-height: 240px;
        }
        #map {
            width: 100%;
            height: 300px;
            border: 0;
        }
        #log {
            height: 200px;
            overflow-y: auto;
            font-family: 'Courier New', monospace;
            font-size: 12px;
            background: #fafafa;
            padding: 8px;
        }
        .error { color: #c62828; }
        .ok { color: #2e7d32; }
        #state {
            font-weight: bold;
        }
    </style>
</head>
<body>
    <h1>CamLink Viewer</h1>
    <div class="grid">
        <div class="panel">
            <img id="video" src="/stream" alt="camera stream">
        </div>
        <div>
            <div class="panel">
                <form id="connect">
                    <input id="host" placeholder="host" value="{{.Host}}">
                    <input id="port" type="number" placeholder="port" value="{{.Port}}">
                    <button type="submit">Connect</button>
                    <button type="button" id="disconnect">Disconnect</button>
                </form>
                <p>State: <span id="state">disconnected</span></p>
            </div>
            <div class="panel">
                <iframe id="map" src="https://www.openstreetmap.org/export/embed.html" title="map"></iframe>
            </div>
        </div>
    </div>
    <div class="panel">
        <div id="log"></div>
    </div>
    <script>
        const log = document.getElementById('log');
        const state = document.getElementById('state');

        function append(ev) {
            const line = document.createElement('div');
            const failed = ev.kind !== 'connected' && ev.kind !== 'listening' && ev.kind !== 'disconnected';
            line.className = failed ? 'error' : 'ok';
            line.textContent = new Date(ev.time).toLocaleTimeString() + ' ' + ev.message;
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
        }

        async function refresh() {
            const res = await fetch('/api/status');
            const status = await res.json();
            state.textContent = status.client.state;
        }

        async function post(path, body) {
            const res = await fetch(path, {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: body ? JSON.stringify(body) : '{}',
            });
            if (!res.ok) {
                const err = await res.json();
                append({time: Date.now(), kind: 'error', message: err.error});
            }
            refresh();
        }

        document.getElementById('connect').addEventListener('submit', (e) => {
            e.preventDefault();
            post('/api/connect', {
                host: document.getElementById('host').value,
                port: parseInt(document.getElementById('port').value, 10) || 0,
            });
        });
        document.getElementById('disconnect').addEventListener('click', () => post('/api/disconnect'));

        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events');
        ws.onmessage = (msg) => { append(JSON.parse(msg.data)); refresh(); };

        refresh();
    </script>
</body>
</html>`
