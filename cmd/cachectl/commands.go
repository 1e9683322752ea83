package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/and161185/fedicache/internal/config"
	"github.com/and161185/fedicache/internal/content"
	"github.com/and161185/fedicache/internal/identity"
	"github.com/and161185/fedicache/internal/store"
	"github.com/and161185/fedicache/internal/upsert"
)

const (
	envPrefix         = "FEDICACHE"
	flagRootName      = "root"
	flagRootDesc      = "Data root holding identity stores (overrides FEDICACHE_ROOT)"
	flagSecretName    = "secret"
	flagSecretDesc    = "Store secret of the identity"
	flagDebugName     = "debug"
	flagDebugDesc     = "Enable development logging"
	flagActiveName    = "active"
	flagActiveDesc    = "Identity ids to keep; every other stored identity is removed"
	errLoggerCreate   = "create logger"
	errSecretRequired = "--secret (or FEDICACHE_SECRET) is required"
)

// session bundles what every subcommand needs.
type session struct {
	log     *zap.Logger
	manager *identity.Manager
	mode    identity.Mode
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cachectl",
		Short:        "Inspect and maintain identity content stores",
		SilenceUsage: true,
	}
	root.PersistentFlags().String(flagRootName, "", flagRootDesc)
	root.PersistentFlags().String(flagSecretName, "", flagSecretDesc)
	root.PersistentFlags().Bool(flagDebugName, false, flagDebugDesc)
	for _, name := range []string{flagRootName, flagSecretName, flagDebugName} {
		cobra.CheckErr(viper.BindPFlag(name, root.PersistentFlags().Lookup(name)))
	}
	cobra.OnInitialize(configureEnvironment)

	root.AddCommand(newStatsCommand(), newMaintainCommand(), newDestroyCommand(), newGCCommand())
	return root
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if root := viper.GetString(flagRootName); root != "" {
		cfg.Root = root
	}

	var log *zap.Logger
	if viper.GetBool(flagDebugName) {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errLoggerCreate, err)
	}
	return &session{log: log, manager: identity.NewManager(cfg.Identity(), log), mode: cfg.StoreMode()}, nil
}

func (s *session) close() {
	if err := s.manager.CloseAll(); err != nil {
		s.log.Warn("close identities", zap.Error(err))
	}
	_ = s.log.Sync()
}

// open opens id in the configured store mode. Ephemeral mode works on an empty
// in-memory store and leaves the data root untouched.
func (s *session) open(ctx context.Context, id string) (*content.Database, error) {
	if s.mode == identity.Ephemeral {
		return s.manager.Open(ctx, id, identity.Options{Mode: identity.Ephemeral})
	}
	secret := viper.GetString(flagSecretName)
	if secret == "" {
		return nil, fmt.Errorf("%s", errSecretRequired)
	}
	return s.manager.Open(ctx, id, identity.Options{Mode: identity.Persistent, Secret: []byte(secret)})
}

// statsReport is the YAML document printed by the stats command.
type statsReport struct {
	Identity string      `yaml:"identity"`
	Mode     string      `yaml:"mode"`
	Dir      string      `yaml:"dir,omitempty"`
	Tables   store.Stats `yaml:"tables"`
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <identity>",
		Short: "Print row counts of an identity store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			db, err := s.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st, err := db.Stats()
			if err != nil {
				return err
			}
			report := statsReport{
				Identity: identity.Label(args[0]),
				Mode:     s.mode.String(),
				Tables:   st,
			}
			if s.mode == identity.Persistent {
				report.Dir = s.manager.Dir(args[0])
			}
			return writeYAML(cmd.OutOrStdout(), report)
		},
	}
}

// maintainReport is the YAML document printed by the maintain command.
type maintainReport struct {
	Pruned    int                  `yaml:"pruned_entries"`
	Compacted upsert.CompactResult `yaml:"compacted"`
}

func newMaintainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "maintain <identity>",
		Short: "Trim collections and drop unreachable entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			db, err := s.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := db.Maintain(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), maintainReport{Pruned: res.Pruned, Compacted: res.Compacted})
		},
	}
}

func newDestroyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <identity>",
		Short: "Delete the stored content of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.manager.Destroy(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "destroyed", identity.Label(args[0]))
			return nil
		},
	}
}

func newGCCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "gc",
		Short: "Remove stores of identities that are not active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			active, err := cmd.Flags().GetStringSlice(flagActiveName)
			if err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.manager.CollectGarbage(cmd.Context(), active)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), map[string][]string{"removed": removed})
		},
	}
	command.Flags().StringSlice(flagActiveName, nil, flagActiveDesc)
	return command
}
