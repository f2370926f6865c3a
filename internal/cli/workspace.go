package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/workspace"
)

var flagWorkspaceJSON bool

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage embedding cache workspaces",
}

var workspaceUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Create a workspace and print its activation command",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceUse,
}

var workspaceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active workspace and its cached entries",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceStatus,
}

var workspacePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries whose source files are missing or changed",
	Args:  cobra.NoArgs,
	RunE:  runWorkspacePrune,
}

func init() {
	workspaceCmd.PersistentFlags().BoolVarP(&flagWorkspaceJSON, "json", "j", false, "Emit JSON")
	workspaceCmd.AddCommand(workspaceUseCmd)
	workspaceCmd.AddCommand(workspaceStatusCmd)
	workspaceCmd.AddCommand(workspacePruneCmd)
}

// modelIdentity reports the model recorded in workspace headers. The
// model is optional here: workspace commands work before any model is
// installed.
func modelIdentity() (string, int) {
	model, err := embedder.Default()
	if err != nil {
		return "", 0
	}
	return model.ModelID(), model.Dim()
}

func runWorkspaceUse(cmd *cobra.Command, args []string) error {
	name := args[0]
	modelID, dim := modelIdentity()

	ws, instruction, err := workspace.Use(name, modelID, dim)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	if flagWorkspaceJSON {
		status, err := ws.Status()
		if err != nil {
			return err
		}
		return printJSON(status)
	}

	fmt.Printf("Workspace %q configured.\n", name)
	fmt.Println("To activate it, run:")
	fmt.Printf("  %s\n", instruction)
	fmt.Println()
	fmt.Println("Or add that line to your shell profile (.bashrc, .zshrc, ...)")
	return nil
}

func runWorkspaceStatus(cmd *cobra.Command, args []string) error {
	ws, err := openActive()
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	status, err := ws.Status()
	if err != nil {
		return err
	}

	if flagWorkspaceJSON {
		return printJSON(status)
	}

	fmt.Printf("Active workspace: %s\n", status.Name)
	fmt.Printf("Root: %s\n", status.Root)
	fmt.Printf("Entries: %d (%d bytes)\n", status.Entries, status.SizeBytes)
	if status.HasCatalog {
		fmt.Println("Index: yes (sqlite catalog)")
	} else {
		fmt.Println("Index: no")
	}
	return nil
}

func runWorkspacePrune(cmd *cobra.Command, args []string) error {
	ws, err := openActive()
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	out, err := ws.Prune()
	if err != nil {
		return err
	}

	if flagWorkspaceJSON {
		return printJSON(out)
	}

	if out.Removed == 0 {
		fmt.Println("No stale entries found. Workspace is clean.")
		return nil
	}
	fmt.Printf("Found %d stale entries:\n", out.Removed)
	for _, p := range out.Paths {
		fmt.Printf("  - %s\n", p)
	}
	fmt.Printf("Removed %d stale entries, %d remaining.\n", out.Removed, out.Remaining)
	return nil
}

func openActive() (*workspace.Workspace, error) {
	modelID, dim := modelIdentity()
	ws, err := workspace.OpenActive(modelID, dim)
	if err != nil {
		return nil, fmt.Errorf("no active workspace; run: semtools workspace use <name>: %w", err)
	}
	return ws, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
