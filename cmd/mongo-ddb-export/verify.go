package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
	"github.com/baldanca/mongo-ddb-export/config"
)

// errInvalidRecords is returned when verify finds at least one bad line.
var errInvalidRecords = errors.New("invalid records found")

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>...",
		Short: "Check exported NDJSON files record by record",
		Long: `Decode every line of each file as an {"Item": {...}} record and check
that every value carries exactly one tag, that N values parse as finite
numbers, and that the identifier field is absent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlag(config.KeyIDField, cmd.Flags().Lookup(config.KeyIDField)); err != nil {
				return err
			}
			return runVerify(cmd, args, v.GetString(config.KeyIDField))
		},
	}
	cmd.Flags().String(config.KeyIDField, attrvalue.DefaultIdentifierField, "identifier field that must be absent")
	return cmd
}

func runVerify(cmd *cobra.Command, paths []string, idField string) error {
	out := cmd.OutOrStdout()
	bad := false

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		rep, err := attrvalue.VerifyStream(f, idField)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}

		status := "ok"
		if !rep.OK() {
			status = "invalid"
			bad = true
		}
		fmt.Fprintf(out, "%s: %d valid, %d invalid (%s)\n", path, rep.Records, len(rep.Invalid), status)
		for _, le := range rep.Invalid {
			fmt.Fprintf(out, "  %s: %v\n", path, le)
		}
	}

	if bad {
		return errInvalidRecords
	}
	return nil
}
