package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ryzenadjd/internal/app"
	"ryzenadjd/internal/config"
	"ryzenadjd/internal/core"
	"ryzenadjd/internal/modules/host"
	"ryzenadjd/internal/ryzenadj"
	"ryzenadjd/internal/storage"
	"ryzenadjd/internal/storage/sqlite"
	"ryzenadjd/internal/transports/socket"
	"ryzenadjd/internal/watchdog"
	"ryzenadjd/pkg/logger"
)

// New создает корневую CLI-команду.
func New(version string) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "ryzenadjd",
		Short:         "Демон управления ryzenadj через Unix-сокет",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "путь к YAML-конфигурации")

	load := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newSendCmd(load))
	root.AddCommand(newCommandsCmd(load))
	root.AddCommand(newHostCmd(load))
	root.AddCommand(newHistoryCmd(load))
	root.AddCommand(newTctlCmd(load))
	root.AddCommand(newVersionCmd(version))

	return root
}

type configLoader func() (config.Config, error)

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить демон",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			level := cfg.Agent.LogLevel
			if env := os.Getenv("LOG_LEVEL"); env != "" {
				level = env
			}
			lg := logger.NewWithLevel(os.Stdout, level)

			a, err := app.NewApp(cmd.Context(), cfg, lg, app.Options{})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					lg.Warn("close storage", "err", err)
				}
			}()
			return a.Serve(cmd.Context())
		},
	}
}

func newSendCmd(load configLoader) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send -- <command> [value]",
		Short: "Отправить одну команду работающему демону",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			reply, err := socket.Send(ctx, cfg.Socket.Path, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "таймаут ожидания ответа")
	return cmd
}

func newCommandsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "Показать команды, найденные в справке ryzenadj",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			runner := ryzenadj.New(cfg.Ryzenadj.Path, nil)
			if err := runner.CheckInstalled(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			g, err := core.DiscoverGrammar(ctx, runner, cfg.Ryzenadj.HelpFlag)
			if err != nil {
				return err
			}
			for _, name := range g.Commands() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newHostCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "host [status|cpu|check]",
		Short:     "Показать состояние узла",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"status", "cpu", "check"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			sub := "status"
			if len(args) == 1 {
				sub = args[0]
			}
			registry := core.NewRegistry()
			if err := registry.Register(cmd.Context(), &host.Module{Extra: cfg.Host.SupportedDevices}); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			resp, err := registry.Execute(ctx, "host", sub, nil)
			if resp.Data != nil {
				// check отдает отчет и при ошибке, чтобы была видна модель CPU
				if werr := writeJSON(cmd, resp); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func newHistoryCmd(load configLoader) *cobra.Command {
	var (
		limit        int
		status       string
		since, until string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать журнал обработанных команд",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			now := time.Now()
			q := storage.CommandQuery{Limit: limit, Status: status}
			if q.From, err = parseTimeFlag("since", since, now); err != nil {
				return err
			}
			if q.To, err = parseTimeFlag("until", until, now); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.QueryCommands(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd, records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "максимум записей")
	cmd.Flags().StringVar(&status, "status", "", "фильтр по статусу (ok, rejected, exec_error)")
	cmd.Flags().StringVar(&since, "since", "", "начало интервала: RFC3339 или длительность назад (1h)")
	cmd.Flags().StringVar(&until, "until", "", "конец интервала: RFC3339 или длительность назад")
	return cmd
}

// tctlReport выводится командой tctl.
type tctlReport struct {
	Value      string          `json:"value"`
	TS         time.Time       `json:"ts"`
	Correction json.RawMessage `json:"correction,omitempty"`
}

func newTctlCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "tctl",
		Short: "Показать последнюю коррекцию tctl, сделанную watchdog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			r, err := st.LatestReading(cmd.Context(), watchdog.ReadingName)
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no tctl corrections recorded")
				return nil
			}
			if err != nil {
				return err
			}
			report := tctlReport{Value: r.Value, TS: r.TS}
			if json.Valid(r.Payload) {
				report.Correction = r.Payload
			}
			return writeJSON(cmd, report)
		},
	}
}

func openStore(cfg config.Config) (*sqlite.Store, error) {
	if cfg.SQLite.Path == "" {
		return nil, errors.New("storage is disabled: sqlite.path is empty")
	}
	return sqlite.Open(cfg.SQLite.Path)
}

// parseTimeFlag принимает RFC3339 или длительность, отсчитанную назад от now.
func parseTimeFlag(name, v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC3339 time or positive duration", name, v)
	}
	return now.Add(-d), nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
