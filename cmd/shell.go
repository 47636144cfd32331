package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive control shell",
	Long: `Start an interactive shell that runs vlanswitch commands against the
daemon, with line editing and history.

Examples:
  vlanswitch> vlan lookup --port 2 --switch 1
  vlanswitch> fdb --vlan 10
  vlanswitch> exit`,
	Run: func(cmd *cobra.Command, args []string) {
		runShell(cmd.Root(), cmd.OutOrStdout())
	},
}

func runShell(root *cobra.Command, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(shellCompleter(root))

	historyFile := filepath.Join(os.Getenv("HOME"), ".vlanswitch_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(out, "vlanswitch shell. Type 'help' for commands or 'exit' to quit.")

	for {
		input, err := line.Prompt("vlanswitch> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, "Use 'exit' to quit")
				continue
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "exit" || input == "quit" {
			break
		}
		if err := runShellLine(root, input, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}

	if f, err := os.Create(historyFile); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}
}

// runShellLine executes one shell input line as a vlanswitch command.
// Flags of the target command are reset first so values do not leak from
// the previous line.
func runShellLine(root *cobra.Command, input string, out io.Writer) error {
	args := strings.Fields(input)
	target, _, err := root.Find(args)
	if err != nil {
		return err
	}
	switch target.Name() {
	case "shell", "daemon":
		return fmt.Errorf("%q is not available inside the shell", target.Name())
	}

	target.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	return root.Execute()
}

// shellCompleter completes command and subcommand names.
func shellCompleter(root *cobra.Command) liner.Completer {
	return func(line string) []string {
		fields := strings.Fields(line)
		parent := root
		prefix := ""
		if len(fields) > 0 && !strings.HasSuffix(line, " ") {
			prefix = fields[len(fields)-1]
			fields = fields[:len(fields)-1]
		}
		if len(fields) > 0 {
			found, rest, err := root.Find(fields)
			if err != nil || len(rest) > 0 {
				return nil
			}
			parent = found
		}

		var out []string
		for _, c := range parent.Commands() {
			if c.Hidden || !strings.HasPrefix(c.Name(), prefix) {
				continue
			}
			out = append(out, strings.TrimSpace(strings.Join(append(fields, c.Name()), " ")))
		}
		return out
	}
}
