package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dlp-radius/goradius/internal/dictionary"
)

// dictionaryCmd dumps the dictionary goradiusctl itself loaded (embedded
// standard dictionary plus any --dict-file overlays) for operator
// inspection.
func dictionaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dictionary",
		Short: "Dump the loaded attribute dictionary",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := formatDictionary(dict.All(), outputFormat)
			if err != nil {
				return fmt.Errorf("format dictionary: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

// sortedAttrDefs returns defs sorted by name, for stable CLI output.
func sortedAttrDefs(defs []*dictionary.AttributeDef) []*dictionary.AttributeDef {
	out := make([]*dictionary.AttributeDef, len(defs))
	copy(out, defs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
