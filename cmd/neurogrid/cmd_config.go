package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/neurogrid/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage neurogrid configuration",
		Long: `View and modify neurogrid configuration settings.

Configuration is stored in ~/.neurogrid/config.yaml. Keys use dot
notation matching the YAML layout.

Examples:
  neurogrid config list                            # Show all settings
  neurogrid config get neuron.firing_threshold     # Get a specific setting
  neurogrid config set neuron.refractory 250ms     # Set a setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			values, err := configValues(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration (~/.neurogrid/config.yaml):")
			fmt.Fprintln(out)
			for _, section := range []string{"grid", "neuron", "random", "logging", "store"} {
				fields, _ := values[section].(map[string]interface{})
				for _, key := range sortedKeys(fields) {
					fmt.Fprintf(out, "  %-36s %v\n", section+"."+key+":", valueOrDefault(fields[key], "(default)"))
				}
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found, err := getConfigValue(cfg, key)
			if err != nil {
				return err
			}
			if !found {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": "key not found",
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Unknown configuration key: %s\n", key)
				}
				return nil
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			} else {
				fmt.Fprintf(out, "%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]
			out := cmd.OutOrStdout()

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			updated, err := setConfigValue(cfg, key, value)
			if err != nil {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(out, "Error: %v\n", err)
				}
				return nil
			}

			if err := saveConfig(updated, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			} else {
				fmt.Fprintf(out, "Set %s = %s\n", key, value)
			}

			return nil
		},
	}
}

// configValues renders cfg as a nested map keyed by YAML field names.
func configValues(cfg *config.NeurogridConfig) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return values, nil
}

// getConfigValue retrieves a leaf configuration value by dot-notation key.
func getConfigValue(cfg *config.NeurogridConfig, key string) (interface{}, bool, error) {
	values, err := configValues(cfg)
	if err != nil {
		return nil, false, err
	}
	section, field, ok := strings.Cut(key, ".")
	if !ok {
		return nil, false, nil
	}
	fields, ok := values[section].(map[string]interface{})
	if !ok {
		return nil, false, nil
	}
	v, ok := fields[field]
	return v, ok, nil
}

// setConfigValue returns a copy of cfg with key set to value. The value is
// parsed as a YAML scalar and the result must pass validation.
func setConfigValue(cfg *config.NeurogridConfig, key, value string) (*config.NeurogridConfig, error) {
	if _, found, err := getConfigValue(cfg, key); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}

	var scalar interface{}
	if err := yaml.Unmarshal([]byte(value), &scalar); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", value, err)
	}
	if scalar == nil {
		scalar = ""
	}

	values, err := configValues(cfg)
	if err != nil {
		return nil, err
	}
	section, field, _ := strings.Cut(key, ".")
	fields := values[section].(map[string]interface{})
	fields[field] = scalar

	data, err := yaml.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	updated := config.Default()
	if err := yaml.Unmarshal(data, updated); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	return updated, nil
}

// configFilePath is --config, else ~/.neurogrid/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// saveConfig writes the configuration to path.
func saveConfig(cfg *config.NeurogridConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value interface{}, defaultValue string) interface{} {
	if s, ok := value.(string); ok && s == "" {
		return defaultValue
	}
	return value
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
