package main

import (
	"os"

	"github.com/aligator/sdfat"
	"github.com/aligator/sdfat/imgcard"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// rootCmd lists the root directory of a FAT32 card image the same way the
// firmware dumps it over the serial line.
var rootCmd = &cobra.Command{
	Use:          "sdls <image>",
	Short:        "List the root directory of a FAT32 card image",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := imgcard.Open(afero.NewOsFs(), args[0])
		if err != nil {
			return err
		}

		session := sdfat.NewSession(sdfat.NewCard(card), cmd.OutOrStdout())
		return session.Run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
