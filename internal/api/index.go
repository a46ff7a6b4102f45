package api

// indexPage is the embedded configuration UI. It is deliberately a single
// self-contained document: when the device is in access-point fallback there
// is no internet to load assets from.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>armoured-candles</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; padding: 0 1em; }
fieldset { margin-bottom: 1.5em; }
label { display: block; margin: 0.5em 0 0.1em; }
input, select { width: 100%; max-width: 320px; }
button { margin-right: 0.5em; padding: 0.4em 1.2em; }
#status { white-space: pre-wrap; font-family: monospace; background: #f4f4f4; padding: 1em; }
img { border: 1px solid #ccc; max-width: 100%; }
</style>
</head>
<body>
<h1>armoured-candles</h1>

<h2>Status</h2>
<div id="status">loading...</div>
<p>
<button onclick="forceRefresh()">Refresh display now</button>
<button onclick="restart()">Restart device</button>
</p>

<h2>Display</h2>
<img id="frame" src="/api/display" alt="current frame">

<h2>Settings</h2>
<p>Fetch <code>GET /api/status</code>, edit the JSON below, and apply.</p>
<textarea id="config" rows="20" style="width:100%" spellcheck="false"></textarea>
<p><button onclick="applyConfig()">Apply configuration</button></p>

<script>
async function loadStatus() {
  const res = await fetch('/api/status');
  const body = await res.json();
  document.getElementById('status').textContent = JSON.stringify(body, null, 2);
}
async function forceRefresh() {
  await fetch('/api/refresh', {method: 'POST'});
  setTimeout(() => { document.getElementById('frame').src = '/api/display?' + Date.now(); }, 3000);
}
async function restart() {
  if (confirm('Restart the device?')) await fetch('/api/restart', {method: 'POST'});
}
async function applyConfig() {
  const res = await fetch('/api/config', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: document.getElementById('config').value,
  });
  const body = await res.json();
  alert(res.ok ? 'applied' : body.error.code + ': ' + body.error.message);
  loadStatus();
}
loadStatus();
</script>
</body>
</html>
`
