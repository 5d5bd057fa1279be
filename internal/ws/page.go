package ws

// dashboardPage is the server-rendered dashboard shell. Widget fragments
// are injected pre-rendered; /static/app.js swaps them live as
// widget_update messages arrive. Theme colors are inlined because they
// are chosen per config, not baked into the stylesheet.
const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
:root {
{{.CSSVars}}
}
.grid { grid-template-columns: repeat({{.Columns}}, 1fr); }
</style>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
<h1>{{.Title}}</h1>
<span id="conn">&#9679; offline</span>
<div class="grid">
{{range .Widgets}}
  <div class="widget" data-widget="{{.Name}}">
    <h2>{{.DisplayName}}</h2>
    <div class="widget-body">{{.HTML}}</div>
  </div>
{{end}}
</div>
<script src="/static/app.js"></script>
</body>
</html>
`
