package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flat, err := cfg.Flatten()
	if err != nil {
		return err
	}
	defaults := config.Default()
	defaultFlat, err := defaults.Flatten()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		note := ""
		switch def, known := defaultFlat[k]; {
		case !known:
			note = "unknown key"
		case string(def) != string(flat[k]):
			note = "changed"
		}
		rows = append(rows, []string{k, string(flat[k]), note})
	}

	fmt.Println(paths.ConfigFile())
	fmt.Println(renderTable([]string{"Key", "Value", ""}, rows, nil))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := paths.ConfigFile()
	if _, err := os.Stat(path); err == nil && !configForce {
		// setup already created the file on first run; say so instead of failing.
		fmt.Printf("%s already exists (use --force to reset it)\n", path)
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	defaults := config.Default()
	if err := defaults.Save(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote defaults to %s\n", path)
	return nil
}
