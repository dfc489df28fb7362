package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/debpack/debpack/deb"
)

var infoCmd = &cobra.Command{
	Use:   "info <package.deb>",
	Short: "Print the control paragraph and contents of a .deb file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		contents, err := deb.Read(f)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", args[0], err)
		}

		fmt.Print(contents.Control)
		fmt.Println()
		for _, e := range contents.Entries {
			if e.Linkname != "" {
				fmt.Printf("%o %s -> %s\n", e.Mode, e.Name, e.Linkname)
				continue
			}
			fmt.Printf("%o %s\n", e.Mode, e.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
