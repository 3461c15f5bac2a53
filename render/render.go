package render

import (
	"bytes"
	"html/template"
	"strconv"

	"repo-scan/analysis"
)

var summaryTmpl = template.Must(template.New("summary").Parse(
	`<p>Total vulnerability percentage for the entire project: {{.Total}}%</p>` +
		`{{if .HasDependencies}}<h2>Vulnerability percentages for dependencies:</h2>` +
		`{{range .Dependencies}}<p>Vulnerability percentage for {{.Name}}: {{.Percentage}}%</p>{{end}}{{end}}`,
))

var messageTmpl = template.Must(template.New("message").Parse(`<p>{{.}}</p>`))

type dependencyLine struct {
	Name       string
	Percentage string
}

type summaryView struct {
	Total           string
	HasDependencies bool
	Dependencies    []dependencyLine
}

// Render maps a response to the HTML that replaces the display region.
// Messages are emitted verbatim; package names are escaped.
func Render(resp *analysis.Response) (string, error) {
	var buf bytes.Buffer

	switch resp.Kind() {
	case analysis.KindSummary:
		view := summaryView{
			Total:           formatPercentage(*resp.TotalVulnerabilityPercentage),
			HasDependencies: resp.Dependencies != nil,
		}
		for _, dep := range resp.Dependencies {
			view.Dependencies = append(view.Dependencies, dependencyLine{
				Name:       dep.PackageName,
				Percentage: formatPercentage(dep.VulnerabilityPercentage),
			})
		}
		if err := summaryTmpl.Execute(&buf, view); err != nil {
			return "", err
		}
	case analysis.KindMessage:
		if err := messageTmpl.Execute(&buf, template.HTML(*resp.Message)); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

func formatPercentage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Renderer writes rendered responses into a Display.
type Renderer struct {
	Display *Display
}

// Render replaces the display content with the fragment for resp in a single
// overwrite. The display is left empty if the template fails.
func (r *Renderer) Render(resp *analysis.Response) error {
	html, err := Render(resp)
	if err != nil {
		r.Display.Clear()
		return err
	}
	r.Display.Set(html)
	return nil
}
