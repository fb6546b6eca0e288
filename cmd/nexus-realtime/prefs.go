package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nexus-reussite/nexus-realtime/internal/store"
)

func init() {
	prefsCmd.AddCommand(
		prefsShowCmd,
		prefsThemeCmd,
		prefsSidebarCmd,
		prefsLanguageCmd,
		prefsGetCmd,
		prefsSetCmd,
		prefsUnsetCmd,
		prefsResetCmd,
	)
	rootCmd.AddCommand(prefsCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect and edit persisted UI preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print UI state and user preferences as YAML",
	Args:  cobra.NoArgs,
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, _ []string) error {
		ui, err := p.UIState(cmd.Context())
		if err != nil {
			return err
		}
		all, err := p.All(cmd.Context())
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(map[string]any{"ui": ui, "preferences": all})
		if err != nil {
			return errors.Wrap(err, "encoding preferences")
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	}),
}

var prefsThemeCmd = &cobra.Command{
	Use:       "theme <light|dark|system>",
	Short:     "Set the colour theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(store.ThemeLight), string(store.ThemeDark), string(store.ThemeSystem)},
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		return p.SetTheme(cmd.Context(), store.Theme(args[0]))
	}),
}

var prefsSidebarCmd = &cobra.Command{
	Use:       "sidebar <open|closed>",
	Short:     "Set whether the sidebar starts open",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"open", "closed"},
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		switch args[0] {
		case "open":
			return p.SetSidebarOpen(cmd.Context(), true)
		case "closed":
			return p.SetSidebarOpen(cmd.Context(), false)
		default:
			return errors.Wrapf(store.ErrInvalidPreference, "sidebar %q", args[0])
		}
	}),
}

var prefsLanguageCmd = &cobra.Command{
	Use:   "language <code>",
	Short: "Set the interface language (fr, en, ar, ...)",
	Args:  cobra.ExactArgs(1),
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		return p.SetLanguage(cmd.Context(), args[0])
	}),
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one user preference",
	Args:  cobra.ExactArgs(1),
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		v, ok, err := p.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("preference %q is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}),
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a user preference",
	Args:  cobra.ExactArgs(2),
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		return p.Set(cmd.Context(), args[0], args[1])
	}),
}

var prefsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a user preference",
	Args:  cobra.ExactArgs(1),
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, args []string) error {
		return p.Delete(cmd.Context(), args[0])
	}),
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every persisted preference",
	Args:  cobra.NoArgs,
	RunE: withPreferences(func(cmd *cobra.Command, p *store.Preferences, _ []string) error {
		return p.Reset(cmd.Context())
	}),
}

// withPreferences opens the preference database around fn. The connection
// manager is not involved; preferences are local only.
func withPreferences(fn func(*cobra.Command, *store.Preferences, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := store.OpenPreferences(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer p.Close()
		return fn(cmd, p, args)
	}
}
