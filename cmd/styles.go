package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-photo-studio/pkg/prompt"
)

var (
	stylesFile string
	stylesJSON bool
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "4コマ漫画の画風一覧を表示します",
	Args:  cobra.NoArgs,
	RunE:  runStyles,
}

func init() {
	rootCmd.AddCommand(stylesCmd)
	stylesCmd.Flags().StringVar(&stylesFile, "file", "", "Style catalog YAML (default: $STYLES_FILE or built-in)")
	stylesCmd.Flags().BoolVar(&stylesJSON, "json", false, "Output as JSON")
}

func runStyles(cmd *cobra.Command, args []string) error {
	path := stylesFile
	if path == "" {
		path = os.Getenv("STYLES_FILE")
	}
	catalog, err := prompt.LoadCatalog(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stylesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.Styles())
	}

	def := catalog.Default().ID
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tDESCRIPTION")
	for _, s := range catalog.Styles() {
		id := s.ID
		if id == def {
			id += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, s.Label, s.Description)
	}
	return tw.Flush()
}
