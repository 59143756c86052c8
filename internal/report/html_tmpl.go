package report

const htmlBaseTemplateConstant = `
{{define "base"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{block "title" .}}stepprof{{end}}</title>
<style>
body{background:#0d1117;color:#c9d1d9;font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;font-size:13px;margin:0;padding:16px 24px}
a{color:#58a6ff;text-decoration:none}
h1{font-size:18px;margin:0 0 4px}
h2{font-size:14px;margin:20px 0 6px;color:#58a6ff;text-transform:uppercase;letter-spacing:.5px}
.meta{font-size:11px;color:#8b949e;margin-bottom:12px}
.cards{display:flex;gap:8px;flex-wrap:wrap;margin-bottom:8px}
.card{background:#161b22;border:1px solid #30363d;border-radius:6px;padding:10px 16px;min-width:90px}
.card-val{font-size:18px;font-weight:700;font-family:monospace}
.card-lbl{font-size:10px;color:#8b949e;text-transform:uppercase;letter-spacing:.5px}
.tables{display:flex;gap:24px;flex-wrap:wrap}
table{border-collapse:collapse;font-family:monospace;font-size:12px}
th,td{border-bottom:1px solid #21262d;padding:3px 10px;text-align:left}
th{color:#8b949e;font-weight:400}
td.num{text-align:right}
</style>
</head>
<body>
{{template "content" .}}
</body>
</html>{{end}}
`

const htmlIndexTemplateConstant = `
{{define "content"}}{{if .Execution}}{{template "execution-body" .}}{{else}}{{template "index-body" .}}{{end}}{{end}}
{{define "index-body"}}
<h1>Profile {{.RunID}}</h1>
<div class="meta">generated {{timestamp .GeneratedAt}}</div>
<table>
<tr><th>Execution</th><th>Status</th><th>Duration</th><th>Intervals</th></tr>
{{range $index, $execution := .Executions}}
<tr><td><a href="{{$.LinkPrefix}}{{$index}}">{{$execution.ID}}</a></td><td>{{$execution.Status}}</td><td class="num">{{seconds $execution.DurationSeconds}}</td><td class="num">{{$execution.IntervalCount}}</td></tr>
{{end}}
</table>
{{end}}
`

const htmlExecutionTemplateConstant = `
{{define "execution-body"}}
<style>
.gantt{position:relative;border:1px solid #30363d;border-radius:4px;background:#0d1117;overflow:hidden;margin-top:4px}
.gantt-label{position:absolute;left:0;width:{{labelWidth}}px;height:{{rowHeight}}px;line-height:{{rowHeight}}px;font-family:monospace;font-size:11px;overflow:hidden;white-space:nowrap;text-overflow:ellipsis;padding-left:6px;box-sizing:border-box;border-right:1px solid #30363d}
.gantt-track{position:absolute;left:{{labelWidth}}px;right:8px;top:0;bottom:0}
.bar{position:absolute;height:{{barHeight}}px;background:#1f6feb;border-radius:2px;min-width:1px}
.bar.contributor{background:#6e7681}
.bar.aggregate{background:#8957e5}
.bar.retried{outline:2px solid #f85149}
.loop{position:absolute;border:1px dashed #d29922;border-radius:3px;box-sizing:border-box}
.loop span{position:absolute;top:-1px;left:2px;font-size:10px;color:#d29922}
</style>
{{with .Execution}}
<h1>{{.ID}}</h1>
<div class="meta">run {{$.RunID}} · generated {{timestamp $.GeneratedAt}}</div>
<div class="cards">
  <div class="card"><div class="card-val">{{minutes .DurationMinutes}}</div><div class="card-lbl">Duration (min)</div></div>
  <div class="card"><div class="card-val">{{seconds .DurationSeconds}}</div><div class="card-lbl">Duration (sec)</div></div>
  <div class="card"><div class="card-val">{{timestamp .Start}}</div><div class="card-lbl">Start</div></div>
  <div class="card"><div class="card-val">{{timestamp .End}}</div><div class="card-lbl">End</div></div>
  <div class="card"><div class="card-val">{{.IntervalCount}}</div><div class="card-lbl">Events</div></div>
  <div class="card"><div class="card-val">{{.Status}}</div><div class="card-lbl">Status</div></div>
</div>

<div class="tables">
<div>
<h2>Largest contributors without loops</h2>
<table>
<tr><th>#</th><th>Step</th><th>Duration</th></tr>
{{range $index, $contribution := .ContributorsWithoutLoops}}<tr><td>{{increment $index}}</td><td>{{$contribution.Name}}</td><td class="num">{{seconds $contribution.TotalSeconds}}</td></tr>
{{end}}
</table>
</div>
<div>
<h2>Largest contributors including loops</h2>
<table>
<tr><th>#</th><th>Step</th><th>Duration</th></tr>
{{range $index, $contribution := .ContributorsWithLoops}}<tr><td>{{increment $index}}</td><td>{{$contribution.Name}}</td><td class="num">{{seconds $contribution.TotalSeconds}}</td></tr>
{{end}}
</table>
</div>
</div>

{{if .Aggregates}}
<h2>Aggregated steps</h2>
<table>
<tr><th>Step</th><th>Samples</th><th>Mean</th><th>Median</th><th>Min</th><th>Max</th><th>Distribution</th></tr>
{{range .Aggregates}}<tr><td>{{.Name}}</td><td class="num">{{.Statistics.Count}}</td><td class="num">{{seconds .Statistics.Mean}}</td><td class="num">{{seconds .Statistics.Median}}</td><td class="num">{{seconds .Statistics.Minimum}}</td><td class="num">{{seconds .Statistics.Maximum}}</td><td>{{range .Statistics.Histogram}}{{seconds .Center}}:{{.Count}} {{end}}</td></tr>
{{end}}
</table>
{{end}}

<h2>Timeline</h2>
{{$total := .DurationSeconds}}
<div class="gantt" style="height:{{chartHeight (len .Rows)}}px">
{{range $row, $name := .Rows}}<div class="gantt-label" style="top:{{rowTop $row}}px" title="{{$name}}">{{$name}}</div>
{{end}}
<div class="gantt-track">
{{range .Loops}}{{if ge .FirstRow 0}}<div class="loop" title="{{.Label}} ({{.Iterations}} iterations, {{seconds .DurationSeconds}})" style="left:{{percent .OffsetSeconds $total}}%;width:{{percent .DurationSeconds $total}}%;top:{{rowTop .FirstRow}}px;height:{{loopHeight .FirstRow .LastRow}}px"><span>Loop {{.Iterations}}</span></div>{{end}}
{{end}}
{{range .Steps}}<div class="{{barClass .}}" title="{{.Name}} [{{.Workflow}}] {{seconds .DurationSeconds}}{{if gt .Attempts 1}} attempts {{.Attempts}}{{end}}" style="left:{{percent .OffsetSeconds $total}}%;width:{{percent .DurationSeconds $total}}%;top:{{barTop .Row}}px"></div>
{{end}}
</div>
</div>
{{end}}
{{end}}
`
