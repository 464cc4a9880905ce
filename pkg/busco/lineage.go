package busco

import "sort"

// Lineage datasets the tool ships for the domains this pipeline targets.
// Validated before any invocation so a typo fails the batch fast instead
// of surfacing as N identical tool errors.
var knownLineages = map[string]bool{
	"bacteria_odb10":              true,
	"archaea_odb10":               true,
	"eukaryota_odb10":             true,
	"fungi_odb10":                 true,
	"actinobacteria_phylum_odb10": true,
	"alphaproteobacteria_odb10":   true,
	"bacteroidetes_odb10":         true,
	"cyanobacteria_odb10":         true,
	"enterobacterales_odb10":      true,
	"firmicutes_odb10":            true,
	"gammaproteobacteria_odb10":   true,
	"lactobacillales_odb10":       true,
	"proteobacteria_odb10":        true,
	"ascomycota_odb10":            true,
	"basidiomycota_odb10":         true,
	"saccharomycetes_odb10":       true,
	"metazoa_odb10":               true,
	"viridiplantae_odb10":         true,
}

// KnownLineage reports whether a lineage dataset name is supported.
func KnownLineage(name string) bool {
	return knownLineages[name]
}

// Lineages returns the supported dataset names sorted, for error messages
// and usage output.
func Lineages() []string {
	out := make([]string, 0, len(knownLineages))
	for name := range knownLineages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
