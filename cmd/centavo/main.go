// Package main is the entry point for the centavo CLI. Centavo routes
// conversational exchange commands (prices, portfolio, transactions,
// reports) through staged rollout and circuit-breaker gates before any
// capability call is made.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/normanking/centavo/internal/affinity"
	"github.com/normanking/centavo/internal/capability"
	"github.com/normanking/centavo/internal/config"
	"github.com/normanking/centavo/internal/gate"
	"github.com/normanking/centavo/internal/logging"
	"github.com/normanking/centavo/internal/metrics"
	"github.com/normanking/centavo/internal/prefs"
	"github.com/normanking/centavo/internal/router"
)

var version = "0.1.0"

var (
	cfgPath string
	userID  string
	verbose bool
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func main() {
	lipgloss.SetColorProfile(termenv.ColorProfile())

	rootCmd := &cobra.Command{
		Use:   "centavo",
		Short: "Centavo - conversational exchange command router",
		Long: `Centavo turns chat messages into exchange capability calls:
prices, portfolio, transactions, reports, and connection status.
Every call passes a staged rollout gate and a circuit breaker first.

Start interactive mode:  centavo
One-shot turn:           centavo ask "price btc"
Rollout decision:        centavo gate inspect <user>`,
		RunE: runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.centavo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "user ID for gating and preferences")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("centavo v%s\n", version)
		},
	})

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// app bundles the wired runtime for the chat and ask commands.
type app struct {
	cfg     *config.Config
	router  *router.Router
	metrics *metrics.Store
}

func initApp() (*app, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		File:   config.ExpandPath(cfg.Logging.File),
		Pretty: cfg.Logging.Pretty,
	}
	if verbose {
		logCfg.Level = "debug"
		logCfg.File = ""
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}

	prefStore, err := prefs.NewStore(cfg.PrefsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("opening preference store: %w", err)
	}

	var metricStore *metrics.Store
	if cfg.Metrics.Enabled {
		metricStore, err = metrics.Open(cfg.MetricsPath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening metrics store: %w", err)
		}
	}

	rt := router.New(cfg.RouterOptions(), router.Deps{
		Affinity:  affinity.NewStore(affinity.WithTTL(cfg.Affinity.TTL)),
		FollowUps: affinity.NewFollowUpStore(time.Now),
		Breaker:   gate.NewBreaker(cfg.CircuitState()),
		Rollout:   cfg.RolloutState(),
		Adapter:   capability.NewAdapter(demoExecutor{}, cfg.EnabledSet()),
		Prefs:     prefStore,
		Gate:      cfg.CommentaryGate(),
		Logger:    log,
	})

	cleanup := func() {
		if metricStore != nil {
			metricStore.Close()
		}
	}
	return &app{cfg: cfg, router: rt, metrics: metricStore}, cleanup, nil
}

func (a *app) handle(ctx context.Context, convID, text string) router.Reply {
	start := time.Now()
	reply := a.router.Handle(ctx, router.Turn{
		UserID:         userID,
		ConversationID: convID,
		Text:           text,
	})
	if a.metrics != nil {
		rec := metrics.TurnRecord{
			TurnID:         reply.TurnID,
			UserID:         userID,
			ConversationID: convID,
			Intent:         reply.Intent.String(),
			MatchedBy:      string(reply.MatchedBy),
			ErrorCode:      reply.ErrorCode,
			Deferred:       reply.Deferred,
			Blocked:        reply.ErrorCode == capability.CodeRolloutBlocked,
			LatencyMs:      time.Since(start).Milliseconds(),
		}
		if err := a.metrics.RecordTurn(rec); err != nil {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("metrics write failed: "+err.Error()))
		}
	}
	return reply
}

func runChat(cmd *cobra.Command, args []string) error {
	a, cleanup, err := initApp()
	if err != nil {
		return err
	}
	defer cleanup()

	convID := uuid.NewString()
	fmt.Println(mutedStyle.Render("centavo v" + version + " — type a message, ctrl-d to exit"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		reply := a.handle(cmd.Context(), convID, text)
		switch {
		case reply.Deferred:
			fmt.Println(mutedStyle.Render("(handed to the mission builder)"))
		case reply.Text == "":
			fmt.Println(mutedStyle.Render("(out of scope)"))
		case reply.ErrorCode != "":
			fmt.Println(errorStyle.Render(reply.Text))
		default:
			fmt.Println(replyStyle.Render(reply.Text))
		}
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message]",
		Short: "Route a single message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := initApp()
			if err != nil {
				return err
			}
			defer cleanup()

			reply := a.handle(cmd.Context(), uuid.NewString(), strings.Join(args, " "))
			if reply.Deferred {
				fmt.Println("(deferred to mission builder)")
				return nil
			}
			if reply.Text == "" {
				fmt.Println("(out of scope)")
				return nil
			}
			fmt.Println(reply.Text)
			return nil
		},
	}
}

func gateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Inspect rollout and circuit state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect [user]",
		Short: "Show the rollout decision for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dec := gate.Decide(cfg.RolloutState(), args[0])
			out, err := json.MarshalIndent(dec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			fmt.Printf("bucket: %d\n", gate.Bucket(cfg.Rollout.Salt, args[0]))
			return nil
		},
	})

	return cmd
}

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect stored user preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [user]",
		Short: "Print a user's preference document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := prefs.NewStore(cfg.PrefsDir())
			if err != nil {
				return err
			}
			doc, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Print(doc.Render())
			return nil
		},
	})

	return cmd
}

func statsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show routing metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Metrics.Enabled {
				fmt.Println("Metrics are disabled in config.")
				return nil
			}
			store, err := metrics.Open(cfg.MetricsPath())
			if err != nil {
				return err
			}
			defer store.Close()

			sum, err := store.Summary()
			if err != nil {
				return err
			}
			fmt.Println("Totals")
			fmt.Println("──────")
			fmt.Printf("turns:    %d\n", sum["turns"])
			fmt.Printf("failures: %d\n", sum["failures"])
			fmt.Printf("deferred: %d\n", sum["deferred"])
			fmt.Printf("blocked:  %d\n", sum["blocked"])

			daily, err := store.GetDailyStats(days)
			if err != nil {
				return err
			}
			if len(daily) > 0 {
				fmt.Printf("\nLast %d days\n", days)
				fmt.Println("────────────")
				for _, d := range daily {
					fmt.Printf("%s  turns=%-5d failures=%-4d avg=%.0fms\n",
						d.Date, d.Turns, d.Failures, d.AvgMs)
				}
			}

			intents, err := store.GetIntentStats(days)
			if err != nil {
				return err
			}
			if len(intents) > 0 {
				fmt.Println("\nIntents")
				fmt.Println("───────")
				for _, st := range intents {
					fmt.Printf("%-14s %d\n", st.Intent, st.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "aggregation window in days")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Centavo Configuration:")
			fmt.Println("──────────────────────")
			fmt.Printf("Rollout Stage:  %s\n", cfg.Rollout.Stage)
			fmt.Printf("Rollout %%:      %d\n", cfg.Rollout.Percent)
			fmt.Printf("Kill Switch:    %t\n", cfg.Rollout.KillSwitch)
			fmt.Printf("Turn Budget:    %s\n", cfg.Router.TurnBudget)
			fmt.Printf("Circuit:        %d failures / %dms cooldown\n",
				cfg.Circuit.FailureThreshold, cfg.Circuit.CooldownMs)
			fmt.Printf("Tone:           %s\n", cfg.Renderer.Tone)
			fmt.Printf("Prefs Dir:      %s\n", cfg.PrefsDir())
			fmt.Printf("Metrics DB:     %s\n", cfg.MetricsPath())
			fmt.Printf("Log Level:      %s\n", cfg.Logging.Level)
			return nil
		},
	})

	return cmd
}
