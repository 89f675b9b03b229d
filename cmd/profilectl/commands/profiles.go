package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get [profile]",
	Short: "Show a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create [profile] [permission=true|false ...]",
	Short: "Create a profile",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCreate,
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update [profile] [permission=true|false ...]",
	Short: "Replace every permission of a profile",
	Long: `Replace the full permission set of a profile. Permissions not listed
are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete [profile]",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [profile] [permission]",
	Short: "Check a single permission",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, checkCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	all, err := c.List(cmd.Context())
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), all)
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tPERMISSIONS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, formatParameters(all[name].Parameters))
	}
	return w.Flush()
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	p, err := c.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p)
}

func runCreate(cmd *cobra.Command, args []string) error {
	params, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	verboseLog("creating %s with %v", args[0], params)
	p, err := c.Create(cmd.Context(), args[0], params)
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	params, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	verboseLog("updating %s with %v", args[0], params)
	p, err := c.Update(cmd.Context(), args[0], params)
	if err != nil {
		return err
	}
	return printProfile(cmd.OutOrStdout(), p)
}

func runDelete(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted\n", args[0])
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	res, err := c.Check(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %s\n", res.ProfileName, res.Permission, res.Result)
	return nil
}

// parseAssignments turns "Key=value" arguments into a parameter map. Values
// are validated locally so obvious typos fail before any request is sent.
func parseAssignments(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid permission %q, expected Name=true|false", arg)
		}
		if _, err := profile.ParseValue(value); err != nil {
			return nil, fmt.Errorf("permission %q: %w", key, err)
		}
		params[strings.TrimSpace(key)] = value
	}
	return params, nil
}

func formatParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func printProfile(w io.Writer, p profile.Profile) error {
	if viper.GetBool("json") {
		return printJSON(w, p)
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", p.ProfileName, formatParameters(p.Parameters))
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
