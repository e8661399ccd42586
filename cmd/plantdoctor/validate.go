package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quizbot"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check quiz documents without starting anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validate(cmd.OutOrStdout(), args)
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema quiz documents are checked against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(quiz.Schema())
			return err
		},
	}
}

// validate loads every path and prints one line per quiz. Unreachable nodes
// and ids too long for button data are warnings; load errors fail the run.
func validate(w io.Writer, paths []string) error {
	failed := 0
	for _, p := range paths {
		trees, err := loadPath(p)
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s\n%v\n", p, err)
			continue
		}
		for _, t := range trees {
			fmt.Fprintf(w, "ok   %s: %q, %d nodes\n", t.ID, t.Title, len(t.Nodes))
			for _, id := range quiz.Unreachable(t) {
				fmt.Fprintf(w, "warn %s: node %q is unreachable\n", t.ID, id)
			}
			for _, id := range quizbot.OversizedNodes(t) {
				fmt.Fprintf(w, "warn %s: node id %q is too long for Telegram buttons\n", t.ID, id)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d paths failed validation", failed, len(paths))
	}
	return nil
}

func loadPath(p string) ([]*quiz.Tree, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		cat, err := quiz.LoadCatalog(p, "")
		if err != nil {
			return nil, err
		}
		return cat.List(), nil
	}
	t, err := quiz.LoadFile(p)
	if err != nil {
		return nil, err
	}
	return []*quiz.Tree{t}, nil
}
