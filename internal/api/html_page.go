package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

// chatPageData contains all data needed for the chat page template
type chatPageData struct {
	Providers []string
}

// chatPage renders the single-page chat UI. The page creates its own
// session via the API and keeps the token in memory only.
func (s *Server) chatPage(c echo.Context) error {
	tmpl := template.Must(template.New("chat").Parse(chatPageTemplate))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, chatPageData{Providers: s.providerNames()}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render page")
	}

	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// chatPageTemplate is the chat page template
const chatPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>daitchat</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
  h1 { font-size: 1.3rem; }
  #transcript { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; min-height: 300px; }
  .turn { margin: 0.5rem 0; }
  .turn.user { text-align: right; }
  .bubble { display: inline-block; padding: 0.5rem 0.8rem; border-radius: 10px; background: #f1f1f1; white-space: pre-wrap; }
  .turn.user .bubble { background: #d7ebff; }
  .feedback button { border: none; background: none; cursor: pointer; font-size: 1rem; }
  .feedback button:disabled { opacity: 0.4; cursor: default; }
  form { display: flex; gap: 0.5rem; margin-top: 1rem; }
  input[type=text] { flex: 1; padding: 0.5rem; }
</style>
</head>
<body>
<h1>daitchat</h1>
<label>Provider:
  <select id="provider">
    {{range .Providers}}<option value="{{.}}">{{.}}</option>{{end}}
  </select>
</label>
<div id="transcript"></div>
<form id="chat-form">
  <input type="text" id="prompt" placeholder="Say something..." autocomplete="off">
  <button type="submit">Send</button>
</form>
<script>
let token = null;

async function ensureSession() {
  if (token) return;
  const res = await fetch('/api/v1/sessions', {method: 'POST'});
  const body = await res.json();
  token = body.token;
}

function provider() {
  return document.getElementById('provider').value;
}

function renderTurn(turn) {
  const div = document.createElement('div');
  div.className = 'turn ' + turn.role;
  const bubble = document.createElement('span');
  bubble.className = 'bubble';
  bubble.textContent = turn.content;
  div.appendChild(bubble);
  if (turn.role === 'assistant') {
    const fb = document.createElement('span');
    fb.className = 'feedback';
    for (const value of ['up', 'down']) {
      const btn = document.createElement('button');
      btn.textContent = value === 'up' ? '👍' : '👎';
      btn.disabled = turn.feedback !== undefined && turn.feedback !== '';
      btn.onclick = async () => {
        await fetch('/api/v1/chat/' + provider() + '/messages/' + turn.index + '/feedback', {
          method: 'POST',
          headers: {'Content-Type': 'application/json', 'Authorization': 'Bearer ' + token},
          body: JSON.stringify({value})
        });
        fb.querySelectorAll('button').forEach(b => b.disabled = true);
      };
      fb.appendChild(btn);
    }
    div.appendChild(fb);
  }
  document.getElementById('transcript').appendChild(div);
}

async function refresh() {
  await ensureSession();
  const res = await fetch('/api/v1/chat/' + provider() + '/messages', {
    headers: {'Authorization': 'Bearer ' + token}
  });
  const body = await res.json();
  document.getElementById('transcript').innerHTML = '';
  (body.turns || []).forEach(renderTurn);
}

document.getElementById('provider').onchange = refresh;

document.getElementById('chat-form').onsubmit = async (e) => {
  e.preventDefault();
  const input = document.getElementById('prompt');
  const prompt = input.value.trim();
  if (!prompt) return;
  input.value = '';
  await ensureSession();
  await fetch('/api/v1/chat/' + provider() + '/messages', {
    method: 'POST',
    headers: {'Content-Type': 'application/json', 'Authorization': 'Bearer ' + token},
    body: JSON.stringify({prompt})
  });
  await refresh();
};

refresh();
</script>
</body>
</html>
`
