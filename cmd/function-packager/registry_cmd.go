package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var registryListFile string

// createRegistryCommand creates the registry subcommand
func createRegistryCommand() *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the package registry",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered package descriptor",
		RunE:  executeRegistryList,
	}
	listCmd.Flags().StringVar(&registryListFile, "registry", "",
		"YAML package registry file (default: compiled-in registry)")

	registryCmd.AddCommand(listCmd)
	return registryCmd
}

// executeRegistryList handles the registry list command logic
func executeRegistryList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(registryListFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range reg.Names() {
		desc, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\thandler=%s", desc.Name, desc.PublishedHandler)
		if desc.NeedsRename() {
			fmt.Fprintf(out, " (renamed from %s)", desc.SourceHandler)
		}
		if len(desc.RequiredSharedLibs) > 0 {
			fmt.Fprintf(out, "\tlibs=%s", strings.Join(desc.RequiredSharedLibs, ","))
		}
		fmt.Fprintln(out)
	}
	return nil
}
