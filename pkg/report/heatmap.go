package report

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"

	"github.com/meadm/GenomeCheck/pkg/pipeline"
)

var heatmap_page_template *template.Template

func init() {
	mainTmpl := `<!DOCTYPE html>
<html>
<head>
	<title>Assembly Identity Heatmap</title>
	<style>
		body { font-family: sans-serif; }
		table.heatmap { border-collapse: collapse; }
		table.heatmap th, table.heatmap td { border: 1px solid #555; padding: 4px 6px; text-align: center; }
		th.rotate-text { height: 120px; vertical-align: bottom; }
		th.rotate-text span { writing-mode: vertical-rl; transform: rotate(180deg); }
		.legend-swatch { display: inline-block; width: 16px; height: 16px; vertical-align: middle; }
		.legend-swatch--wide { width: 120px; background: linear-gradient(90deg,#FF0000,#FFFF00,#00FF00); }
		.legend-item { margin-right: 16px; }
	</style>
</head>
<body>
	<h1>Assembly identity</h1>
	<p>Batch {{ .BatchID }}, rows follow the dendrogram leaf order.</p>
	{{ template "legend" . }}
	<table class="heatmap">
		<tr>
			<th></th>
			{{ range .Names }}<th class="rotate-text"><span>{{ . }}</span></th>{{ end }}
		</tr>
		{{ range .Rows }}
		<tr>
			<th>{{ .Name }}</th>
			{{ range .Cells }}<td bgcolor="{{ .Color }}" title="{{ .Title }}">{{ .Label }}</td>{{ end }}
		</tr>
		{{ end }}
	</table>
	{{ if .LowConfidence }}
	<p>No successful comparison: {{ range .LowConfidence }}{{ . }} {{ end }}</p>
	{{ end }}
</body>
</html>
`

	legendTmpl := `{{define "legend"}}
	<p>
		<span class="legend-item"><span class="legend-swatch" style="background:#CCCCCC"></span> not measured</span>
		<span class="legend-item"><span class="legend-swatch" style="background:#8B8989"></span> &lt; 70%</span>
		<span class="legend-item"><span class="legend-swatch legend-swatch--wide"></span> 70%&ndash;100%</span>
	</p>
{{end}}`

	heatmap_page_template = template.New("heatmap_page")
	heatmap_page_template = template.Must(heatmap_page_template.Parse(mainTmpl))
	heatmap_page_template = template.Must(heatmap_page_template.Parse(legendTmpl))
}

// identityColor maps identity between 70 and 100 onto a red-yellow-green
// ramp. Anything below 70 is flat grey, the range where ANI stops being
// meaningful anyway.
func identityColor(value float64) string {

	if value >= 100 {
		return fmt.Sprintf("#%02X%02X00", 0, 255)
	}
	if value < 70 {
		return "#8B8989"
	}

	normalized := (value - 70) / (100 - 70)

	var r, g int
	if normalized <= 0.5 {
		r = 255
		g = int(math.Round(normalized * 2 * 255))
	} else {
		r = int(math.Round((1 - normalized) * 2 * 255))
		g = 255
	}

	return fmt.Sprintf("#%02X%02X00", r, g)
}

type heatmapCell struct {
	Color string
	Title string
	Label string
}

type heatmapRow struct {
	Name  string
	Cells []heatmapCell
}

// WriteHeatmap renders the identity matrix as a standalone HTML page,
// cells colored by identity and imputed entries greyed out. Rows and
// columns follow the dendrogram leaf order when the batch has one.
func WriteHeatmap(w io.Writer, res *pipeline.BatchResult) error {

	m := res.Identity
	if m == nil {
		return fmt.Errorf("report: batch has no identity matrix")
	}

	order := res.LeafOrder
	if len(order) == 0 {
		order = m.Names()
	}

	idx := make([]int, len(order))
	for k, name := range order {
		i, ok := m.Index(name)
		if !ok {
			return fmt.Errorf("report: assembly %q is not in the matrix", name)
		}
		idx[k] = i
	}

	rows := make([]heatmapRow, 0, len(idx))
	for _, i := range idx {
		row := heatmapRow{Name: m.Names()[i]}
		for _, j := range idx {
			var cell heatmapCell
			if m.Imputed(i, j) {
				cell = heatmapCell{
					Color: "#CCCCCC",
					Title: fmt.Sprintf("%s vs %s: not measured", m.Names()[i], m.Names()[j]),
					Label: "-",
				}
			} else {
				v := m.At(i, j)
				cell = heatmapCell{
					Color: identityColor(v),
					Title: fmt.Sprintf("%s vs %s: %.2f", m.Names()[i], m.Names()[j], v),
					Label: strconv.FormatFloat(v, 'f', 1, 64),
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}

	data := struct {
		BatchID       string
		Names         []string
		Rows          []heatmapRow
		LowConfidence []string
	}{
		BatchID:       res.ID,
		Names:         order,
		Rows:          rows,
		LowConfidence: res.LowConfidence,
	}

	return heatmap_page_template.Execute(w, data)
}
