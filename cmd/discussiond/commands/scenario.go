package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roundtable/engine/internal/config"
	"github.com/roundtable/engine/internal/scenario"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect and validate scenario documents",
}

var scenarioValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Load and validate a scenario document",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenarioValidate,
}

var scenarioListDir string

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenario documents under the configured scenario directory",
	RunE:  runScenarioList,
}

func init() {
	scenarioListCmd.Flags().StringVar(&scenarioListDir, "dir", "", "Scenario directory (defaults to the configured scenarioDir)")
	scenarioCmd.AddCommand(scenarioValidateCmd, scenarioListCmd)
}

func runScenarioValidate(cmd *cobra.Command, args []string) error {
	sc, err := scenario.LoadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("scenario %q is valid: %d participant(s), speaking order %s\n",
		sc.ID, len(sc.Participants), sc.SpeakingOrder)

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// runScenarioList walks the scenario directory (flag, else the configured
// default) and prints each .yaml/.yml/.json document it finds, one per
// line, loading each just far enough to report its topic.
func runScenarioList(cmd *cobra.Command, args []string) error {
	dir := scenarioListDir
	if dir == "" {
		workDir, err := getWorkDir()
		if err != nil {
			return err
		}
		appConfig, err := config.Load(workDir)
		if err != nil {
			return err
		}
		dir = appConfig.ScenarioDir
	}
	if dir == "" {
		return fmt.Errorf("no scenario directory configured; pass --dir or set scenarioDir")
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		sc, err := scenario.LoadFile(path)
		if err != nil {
			fmt.Printf("%s  (invalid: %v)\n", path, err)
			continue
		}
		fmt.Printf("%s  %s  %q\n", path, sc.ID, sc.Topic)
	}
	return nil
}
