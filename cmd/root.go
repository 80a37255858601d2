/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/batchtran/internal/config"
	"github.com/valpere/batchtran/internal/logging"
)

var version = "0.3.0"

var (
	cfgFile string

	appConfig *config.Config
	logger    = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "batchtran",
	Short: "Batch translation of JSON resource files with LLMs",
	Long: `A CLI application that translates every string of a JSON resource file
with a chat model, in token-bounded batches. Replies are validated item by
item; rejected items go back to the model with a note describing what to fix.

Supported engines: chatgpt (default), gemini, ollama, claude

Use "batchtran translate --help" for translation options and
"batchtran grade --help" to score an existing translation.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return err
		}
		v := config.New()
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		appConfig = c
		logger = logging.New(os.Stderr, c.Verbose, c.LogJSON)
		return nil
	},
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"engine":           config.KeyEngine,
	"model":            config.KeyModel,
	"base-url":         config.KeyBaseURL,
	"rate-limit":       config.KeyRateLimit,
	"batch-size":       config.KeyBatchSize,
	"batch-max-tokens": config.KeyBatchMaxTokens,
	"retry-delay":      config.KeyRetryDelay,
	"seed":             config.KeySeed,
	"delimiter":        config.KeyDelimiterFlat,
	"template-prefix":  config.KeyPrefix,
	"template-suffix":  config.KeySuffix,
	"concurrency":      config.KeyConcurrency,
	"verbose":          config.KeyVerbose,
	"log-json":         config.KeyLogJSON,
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ./batchtran.yaml or $HOME/.config/batchtran/batchtran.yaml)")
	pf.StringP("engine", "e", "chatgpt", "Chat engine: chatgpt, gemini, ollama, claude")
	pf.StringP("model", "m", "", "Model name (engine default if empty)")
	pf.String("base-url", "", "Override the engine endpoint")
	pf.Duration("rate-limit", 0, "Minimum interval between requests (engine default if unset)")
	pf.Int("batch-size", 16, "Maximum items per batch")
	pf.Int("batch-max-tokens", 0, "Maximum estimated tokens per request (engine default if unset)")
	pf.Duration("retry-delay", 0, "Delay between attempts after an unusable reply (default 500ms)")
	pf.Int64("seed", 0, "Sampling seed where supported (default 69420)")
	pf.String("delimiter", "*", "Separator of flattened key paths")
	pf.String("template-prefix", "{{", "Placeholder prefix")
	pf.String("template-suffix", "}}", "Placeholder suffix")
	pf.Int("concurrency", 2, "Target languages processed at once")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.Bool("log-json", false, "Log JSON lines instead of console output")
}
