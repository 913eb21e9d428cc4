package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/config"
)

// secretKeys are masked by 'config list'.
var secretKeys = map[string]bool{
	"ai.api-key":    true,
	"auth.secret":   true,
	"dolt.password": true,
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage configuration settings",
	Long: `Read and write settings in config.yaml.

Settings are looked up in .tasker/config.yaml, $XDG_CONFIG_HOME/tasker and
~/.config/tasker, and any key can be overridden by an environment variable
such as TASKER_AI_MODEL or TASKER_STORAGE_BACKEND.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := config.GetString(key)
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"key": key, "value": value})
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to config.yaml",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetYamlConfig(args[0], args[1]); err != nil {
			return err
		}
		if !quietFlag && !jsonOutput {
			path, _ := config.ProjectConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every effective setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flat := map[string]string{}
		flatten("", config.AllSettings(), flat)
		for k := range flat {
			if secretKeys[k] && flat[k] != "" {
				flat[k] = "********"
			}
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), flat)
		}
		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, flat[k])
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file 'config set' writes to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ProjectConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// flatten turns nested settings into dotted keys.
func flatten(prefix string, m map[string]interface{}, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case []string:
			out[key] = strings.Join(val, ",")
		case []interface{}:
			parts := make([]string, len(val))
			for i, p := range val {
				parts[i] = fmt.Sprint(p)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
