package report

import (
	"io"
	"text/template"

	"github.com/meadm/GenomeCheck/pkg/pipeline"
)

var summary_template *template.Template

func init() {
	mainTmpl := `Batch {{ .ID }}
Started:   {{ .StartedAt.Format "2006-01-02 15:04:05" }}
Finished:  {{ .FinishedAt.Format "2006-01-02 15:04:05" }}
Assemblies: {{ len .Assemblies }} ({{ parsed .Assemblies }} parsed)

Stages:
  statistics    {{ printf "%-14s" .StatsStage.Status }} {{ .StatsStage.Detail }}
  completeness  {{ printf "%-14s" .CompletenessStage.Status }} {{ .CompletenessStage.Detail }}
  pairwise      {{ printf "%-14s" .PairwiseStage.Status }} {{ .PairwiseStage.Detail }}
{{ if .LowConfidence }}
Low confidence placements (no successful comparison):
{{- range .LowConfidence }}
  - {{ . }}
{{- end }}
{{ end }}`

	summary_template = template.New("batch_summary").Funcs(template.FuncMap{
		"parsed": func(as []pipeline.AssemblyResult) int {
			n := 0
			for _, a := range as {
				if a.Stats != nil {
					n++
				}
			}
			return n
		},
	})
	summary_template = template.Must(summary_template.Parse(mainTmpl))
}

// WriteSummary renders the human-readable batch summary.
func WriteSummary(w io.Writer, res *pipeline.BatchResult) error {
	return summary_template.Execute(w, res)
}
