package fuzz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
)

// Artifact kinds.
const (
	ArtifactReport   = "report_json"
	ArtifactSummary  = "summary_html"
	ArtifactCoverage = "coverage_svg"
	ArtifactBatch    = "batch_json"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.RunID}}</title></head>
<body>
<h1>{{.RunID}}</h1>
<table>
<tr><th>Scenario</th><td>{{.Scenario.Identity}}</td></tr>
<tr><th>Seed</th><td>{{.Scenario.Seed}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Status</th><td>{{.Status}}</td></tr>
<tr><th>Passed</th><td>{{.Passed}}</td></tr>
<tr><th>Turns</th><td>{{.Turns}}</td></tr>
{{- if .EarlyTermination}}
<tr><th>Early termination</th><td>{{.EarlyTermination}}</td></tr>
{{- end}}
<tr><th>Duration</th><td>{{printf "%.0f" .Performance.DurationMS}} ms</td></tr>
<tr><th>Avg turn latency</th><td>{{printf "%.1f" .Performance.AvgTurnLatencyMS}} ms</td></tr>
<tr><th>Turns/sec</th><td>{{printf "%.2f" .Performance.TurnsPerSecond}}</td></tr>
</table>
<h2>Coverage</h2>
<table>
{{- range .Bars}}
<tr><th>{{.Name}}</th><td>{{pct .Value}}</td></tr>
{{- end}}
</table>
<h2>Oracle</h2>
<ul>
{{- range .Flags}}
<li>{{.}}</li>
{{- else}}
<li>none</li>
{{- end}}
</ul>
</body>
</html>
`))

var coverageTemplate = template.Must(template.New("coverage").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}">
{{- range .Bars}}
<text x="0" y="{{.TextY}}" font-size="12">{{.Name}}</text>
<rect x="90" y="{{.Y}}" width="{{.Width}}" height="16" fill="#4a90d9"/>
<text x="{{.LabelX}}" y="{{.TextY}}" font-size="12">{{printf "%.1f" .Percent}}%</text>
{{- end}}
</svg>
`))

type bar struct {
	Name    string
	Value   float64
	Percent float64
	Y       int
	TextY   int
	Width   int
	LabelX  int
}

const barScale = 300

func coverageBars(r RunResult) []bar {
	dims := r.Coverage.Dimensions()
	names := make([]string, 0, len(dims))
	for n := range dims {
		names = append(names, n)
	}
	sort.Strings(names)
	names = append(names, "overall")
	dims["overall"] = r.Coverage.Overall

	bars := make([]bar, 0, len(names))
	for i, n := range names {
		w := int(dims[n] * barScale)
		bars = append(bars, bar{
			Name:    n,
			Value:   dims[n],
			Percent: dims[n] * 100,
			Y:       i * 24,
			TextY:   i*24 + 13,
			Width:   w,
			LabelX:  90 + w + 6,
		})
	}
	return bars
}

// WriteRunArtifacts writes report.json, summary.html and coverage.svg for a
// run under dir/<run id>. Files written before an error are still returned.
func WriteRunArtifacts(dir string, r RunResult) ([]Artifact, error) {
	runDir := filepath.Join(dir, r.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	report, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	bars := coverageBars(r)
	var html bytes.Buffer
	err = summaryTemplate.Execute(&html, struct {
		RunResult
		Bars  []bar
		Flags []string
	}{r, bars, r.Oracle.Failures()})
	if err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	var svg bytes.Buffer
	err = coverageTemplate.Execute(&svg, struct {
		Width, Height int
		Bars          []bar
	}{90 + barScale + 60, len(bars) * 24, bars})
	if err != nil {
		return nil, fmt.Errorf("render coverage chart: %w", err)
	}

	files := []struct {
		kind, name string
		data       []byte
	}{
		{ArtifactReport, "report.json", append(report, '\n')},
		{ArtifactSummary, "summary.html", html.Bytes()},
		{ArtifactCoverage, "coverage.svg", svg.Bytes()},
	}
	arts := make([]Artifact, 0, len(files))
	for _, f := range files {
		a, err := writeArtifact(runDir, f.kind, f.name, f.data)
		if err != nil {
			return arts, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// WriteBatchReport writes the batch as batch_<id>.json under dir.
func WriteBatchReport(dir string, b *Batch) (Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal batch: %w", err)
	}
	return writeArtifact(dir, ArtifactBatch, "batch_"+b.ID+".json", append(data, '\n'))
}

func writeArtifact(dir, kind, name string, data []byte) (Artifact, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	return Artifact{Kind: kind, Path: path, Bytes: int64(len(data))}, nil
}
