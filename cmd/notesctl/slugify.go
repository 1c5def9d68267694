package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notekeeper/notekeeper/internal/notes"
)

func slugifyCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "slugify [title...]",
		Short: "Print the slug a note title would get",
		Long: `Print the slug derived from a title: transliterated to ASCII,
lower-cased, hyphen-separated and cut to 100 characters.

Examples:
  notesctl slugify "Заголовок заметки"
  notesctl slugify --check my-custom_slug`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := strings.Join(args, " ")
			if check {
				if !notes.ValidSlug(in) {
					return fmt.Errorf("%q: %s", in, notes.MsgInvalidSlug)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			s := notes.Derive(in)
			if s == "" {
				return fmt.Errorf("%q: %s", in, notes.MsgUnderivedSlug)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "validate the argument as an explicit slug instead of deriving one")
	return cmd
}
