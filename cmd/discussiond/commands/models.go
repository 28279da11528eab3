package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/internal/config"
	"github.com/roundtable/engine/internal/modelclient"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List models available from configured providers",
	Long: `List every model exposed by configured providers.

Examples:
  discussiond models              # list all models
  discussiond models anthropic    # list only Anthropic models`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}

	appConfig, err := config.Load(dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	registry, err := modelclient.InitializeFromConfig(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("initialize model providers: %w", err)
	}

	var providerFilter string
	if len(args) > 0 {
		providerFilter = args[0]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tMAX OUTPUT\tTOOLS\t")
	for _, model := range registry.AllModels() {
		if providerFilter != "" && model.ProviderID != providerFilter {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%dk\t%d\t%v\t\n",
			model.ProviderID, model.ID, model.ContextLength/1000, model.MaxOutputTokens, model.SupportsTools)
	}
	return w.Flush()
}
