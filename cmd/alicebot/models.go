package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dimanchick22/alicebot/providers/ollama"
)

// selectedModelFile is where the interactive picker saves its choice so
// shell scripts can read it back.
const selectedModelFile = ".selected_model"

func newModelsCmd() *cobra.Command {
	var listOnly bool
	cmd := &cobra.Command{
		Use:   "models [query]",
		Short: "List installed Ollama models, resolve a name, or pick one interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ollama.New(viper.GetString("llm.endpoint"), viper.GetDuration("llm.request_timeout"))
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models (is the Ollama server running?): %w", err)
			}
			active := viper.GetString("llm.model")

			if listOnly {
				fmt.Fprintln(cmd.OutOrStdout(), ollama.FormatModels(models, active))
				return nil
			}

			if len(args) > 0 {
				query := strings.Join(args, " ")
				name, ok := ollama.FindModel(models, query)
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), ollama.FormatModels(models, active))
					return fmt.Errorf("no model matching %q", query)
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			}

			if !term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprintln(cmd.OutOrStdout(), ollama.FormatModels(models, active))
				return nil
			}

			name, err := pickModel(cmd, models)
			if err != nil {
				return err
			}
			if err := os.WriteFile(selectedModelFile, []byte(name+"\n"), 0o644); err != nil {
				return fmt.Errorf("save selection: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "selected %s (saved to %s)\n", name, selectedModelFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listOnly, "list", false, "print the installed list and exit")
	return cmd
}

// pickModel prompts until a valid choice: a number picks by position, an
// empty line takes the recommended model, anything else resolves the way
// /switch does (exact name first, then substring).
func pickModel(cmd *cobra.Command, models []ollama.ModelInfo) (string, error) {
	out := cmd.OutOrStdout()
	recommended, ok := ollama.SelectModel(models)
	if !ok {
		return "", fmt.Errorf("no models installed")
	}
	printNumbered(out, models, recommended)

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprintf(out, "model [%s]: ", recommended)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("no model selected")
		}
		choice := strings.TrimSpace(sc.Text())
		if choice == "" {
			return recommended, nil
		}
		if n, err := strconv.Atoi(choice); err == nil {
			if n >= 1 && n <= len(models) {
				return models[n-1].Name, nil
			}
			fmt.Fprintf(out, "pick a number between 1 and %d\n", len(models))
			continue
		}
		if name, ok := ollama.FindModel(models, choice); ok {
			return name, nil
		}
		fmt.Fprintf(out, "no model matching %q\n", choice)
	}
}

func printNumbered(w io.Writer, models []ollama.ModelInfo, recommended string) {
	for i, m := range models {
		fmt.Fprintf(w, "%2d. %s (%.1f GB)", i+1, m.Name, float64(m.Size)/(1024*1024*1024))
		if m.Name == recommended {
			fmt.Fprint(w, " (recommended)")
		}
		fmt.Fprintln(w)
	}
}
