package main

import (
	"errors"
	"fmt"
	"io/fs"

	"aiformreply-backend/internal/config"
	"aiformreply-backend/internal/procs"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// appFs is the filesystem the procs commands read and write.
var appFs = afero.NewOsFs()

var (
	procsFile  string
	procsOut   string
	procsForce bool
)

var procsCmd = &cobra.Command{
	Use:   "procs",
	Short: "Manage the process manager config for the Python services",
	Long: `The outreach API and the email responder run under a process manager
next to this server. Their launch settings are kept in a YAML file
($PROCESS_CONFIG, default ecosystem.yaml).

Available subcommands:
  init     - Write the default config
  show     - Print the config
  validate - Check the config for missing fields and port clashes
  export   - Render the process manager's ecosystem JSON`,
}

var procsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config",
	RunE:  runProcsInit,
}

var procsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the config",
	RunE:  runProcsShow,
}

var procsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config",
	RunE:  runProcsValidate,
}

var procsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the ecosystem JSON",
	RunE:  runProcsExport,
}

func init() {
	procsCmd.PersistentFlags().StringVarP(&procsFile, "file", "f", "", "config path (default $PROCESS_CONFIG or ecosystem.yaml)")
	procsInitCmd.Flags().BoolVar(&procsForce, "force", false, "overwrite an existing file")
	procsExportCmd.Flags().StringVarP(&procsOut, "out", "o", "", "write to this file instead of stdout")

	procsCmd.AddCommand(procsInitCmd, procsShowCmd, procsValidateCmd, procsExportCmd)
}

func procsPath() string {
	if procsFile != "" {
		return procsFile
	}
	return config.Load().ProcessConfigPath
}

func runProcsInit(cmd *cobra.Command, _ []string) error {
	path := procsPath()
	exists, err := afero.Exists(appFs, path)
	if err != nil {
		return err
	}
	if exists && !procsForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := procs.Default().Save(appFs, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// loadProcs reads the config file, falling back to the defaults when the file
// does not exist.
func loadProcs() (*procs.Config, error) {
	cfg, err := procs.Load(appFs, procsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return procs.Default(), nil
	}
	return cfg, err
}

func runProcsShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadProcs()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runProcsValidate(cmd *cobra.Command, _ []string) error {
	path := procsPath()
	if _, err := procs.Load(appFs, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}

func runProcsExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadProcs()
	if err != nil {
		return err
	}
	data, err := cfg.Ecosystem()
	if err != nil {
		return err
	}
	if procsOut != "" {
		return afero.WriteFile(appFs, procsOut, append(data, '\n'), 0o644)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
