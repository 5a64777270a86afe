package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lessonload/internal/banner"
	"lessonload/internal/cli"
	"lessonload/internal/dummy"
	"lessonload/internal/runner"
)

const envPrefix = "LOADTEST"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lessonload",
	Short: "Traffic simulation for the learning platform",
	Long: `
lessonload simulates learners of every level against the learning platform.

Each simulated learner registers, logs in and walks the lessons, stories,
scenarios and quizzes of its level. One invocation runs one load pattern
(standard, rampup, spike or soak) to completion, prints a report and exits
with status 0 when every threshold holds, 1 otherwise.

Every flag can also be set as LOADTEST_<FLAG> (e.g. LOADTEST_BASE_URL) or in
$HOME/.lessonload.yaml.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := setupLogging(viper.GetString("log-level")); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		os.Exit(cli.Start(configFrom(viper.GetViper())))
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lessonload.yaml)")

	def := runner.DefaultConfig()
	f := rootCmd.Flags()
	f.StringP("base-url", "u", def.BaseURL, "Platform base URL")
	f.Int("total-users", def.TotalUsers, "Identities in the pool (0 = users-per-category x 3)")
	f.Int("users-per-category", def.UsersPerCategory, "Identities per level when total-users is 0")
	f.Float64("coverage", def.Coverage, "Percent of a level's endpoints each session visits")
	f.IntP("concurrency", "c", def.Concurrency, "Maximum sessions per batch")
	f.Duration("timeout", def.Timeout, "Per-request timeout")
	f.Duration("pacing", def.Pacing, "Delay between calls of one session")
	f.StringP("pattern", "p", def.Pattern, "Load pattern: standard, rampup, spike or soak")
	f.Int("target-scenarios", def.TargetScenarios, "Completed scenarios required to pass (soak stops there)")
	f.DurationP("duration", "d", def.Duration, "Soak wall clock")
	f.Int64("seed", def.Seed, "Soak sampling seed (0 = time based)")
	f.String("password", def.Password, "Password of every simulated identity")
	f.String("username-template", def.UsernameTemplate, "Username template ({{.Category}}, {{.Index}}, {{.RunID}}, {{.UUID}})")
	f.Float64("min-success-rate", def.MinSuccessRate, "Pass threshold for the success rate (percent)")
	f.Float64("max-avg-response-ms", def.MaxAvgResponseMs, "Pass threshold for the average response time")
	f.Bool("live", false, "Show the live progress view")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")

	if err := viper.BindPFlags(f); err != nil {
		panic(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".lessonload")
		}
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

func configFrom(v *viper.Viper) runner.Config {
	return runner.Config{
		BaseURL:          v.GetString("base-url"),
		TotalUsers:       v.GetInt("total-users"),
		UsersPerCategory: v.GetInt("users-per-category"),
		Coverage:         v.GetFloat64("coverage"),
		Concurrency:      v.GetInt("concurrency"),
		Timeout:          v.GetDuration("timeout"),
		Pacing:           v.GetDuration("pacing"),
		Pattern:          v.GetString("pattern"),
		TargetScenarios:  v.GetInt("target-scenarios"),
		Duration:         v.GetDuration("duration"),
		Seed:             v.GetInt64("seed"),
		Password:         v.GetString("password"),
		UsernameTemplate: v.GetString("username-template"),
		MinSuccessRate:   v.GetFloat64("min-success-rate"),
		MaxAvgResponseMs: v.GetFloat64("max-avg-response-ms"),
		Live:             v.GetBool("live"),
	}
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	return nil
}

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the mock learning platform",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		latency, _ := cmd.Flags().GetDuration("latency")
		jitter, _ := cmd.Flags().GetDuration("jitter")
		errorRate, _ := cmd.Flags().GetFloat64("error-rate")
		reject, _ := cmd.Flags().GetBool("reject-logins")

		srv := dummy.Start(dummy.ServerConfig{
			Port:         port,
			Latency:      latency,
			Jitter:       jitter,
			ErrorRate:    errorRate,
			RejectLogins: reject,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Dummy server shutdown")
		}
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run the mock platform on")
	dummyCmd.Flags().Duration("latency", 0, "Latency added to every content call")
	dummyCmd.Flags().Duration("jitter", 0, "Random extra latency up to this value")
	dummyCmd.Flags().Float64("error-rate", 0, "Fraction of content calls answered with 500")
	dummyCmd.Flags().Bool("reject-logins", false, "Answer every login with 401")
}
