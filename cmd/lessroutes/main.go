/*
 * Copyright (C) 2024 eQualitie, inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/equalitie/lessroutes/pkg/config"
	"github.com/equalitie/lessroutes/pkg/pipeline"
)

var (
	buildVersion   = "unknown"
	buildDate      = "unknown"
	cfgFile        string
	envPrefix      = "LESSROUTES"
	defaultCfgName = ".lessroutes"
	opts           config.Options
)

// rootCmd represents the root command
var rootCmd = &cobra.Command{
	Use:   "lessroutes",
	Short: "Compute the minimal CIDR routes sending per-country traffic to named gateways",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

// initConfig use config file and ENV variables if set.
func initConfig() {
	v := viper.New()

	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		// Search config in home directory with name ".lessroutes" (without extension).
		v.AddConfigPath(home)
		v.SetConfigName(defaultCfgName)
	}

	// Read environment variables that match prefix
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// If a config file is found, read it in.
	cfgErr := v.ReadInConfig()

	bindFlags(rootCmd, v)

	// initialize logger
	initLogger()

	if cfgErr != nil && cfgFile != "" {
		log.Errorf("Read config error: %v", cfgErr)
	}
}

func initLogger() {
	ll, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		ll = log.ErrorLevel
	}
	log.SetLevel(ll)
	log.SetFormatter(&log.TextFormatter{DisableColors: false, FullTimestamp: true, PadLevelText: true, DisableQuote: true})
}

func dumpConfig(opts *config.Options) {
	configAsJSON, err := json.MarshalIndent(opts, "", "    ")
	if err != nil {
		panic(fmt.Sprintf("error dumping config: %v", err))
	}
	log.Debugf("Using configuration:\n%s", configAsJSON)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		_ = v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			switch val := val.(type) {
			case []interface{}:
				for _, item := range val {
					_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", item))
				}
			default:
				_ = cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
			}
		}
	})
}

func initFlags() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $HOME/%s)", defaultCfgName))
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warning, error")
	rootCmd.PersistentFlags().StringArrayVarP(&opts.Gateways, "gateway", "g", nil, "Gateway mapping as name=CC1,CC2,... (repeatable)")
	rootCmd.PersistentFlags().StringVar(&opts.DefaultGateway, "default-gateway", "", "Gateway for addresses outside all mapped countries")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputV4, "output-v4", "4", "routes.v4.json", "IPv4 routes output file")
	rootCmd.PersistentFlags().BoolVar(&opts.NoV4, "no-v4", false, "Skip IPv4 route generation")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputV6, "output-v6", "6", "routes.v6.json", "IPv6 routes output file")
	rootCmd.PersistentFlags().BoolVar(&opts.NoV6, "no-v6", false, "Skip IPv6 route generation")
	rootCmd.PersistentFlags().StringVarP(&opts.CacheFile, "cache-file", "c", "delegations.json", "Delegations cache file")
	rootCmd.PersistentFlags().BoolVar(&opts.NoCache, "no-cache", false, "Always download, never read or write the cache file")
	rootCmd.PersistentFlags().BoolVar(&opts.Update, "update", false, "Refresh the cache file even if it is fresh")
	rootCmd.PersistentFlags().BoolVar(&opts.NoUpdate, "no-update", false, "Never download; fail if the cache file is missing")
}

func main() {
	// Initialize flags (command line parameters)
	initFlags()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() {
	log.Infof("Starting %s (build version: %s, build date: %s)", filepath.Base(os.Args[0]), buildVersion, buildDate)

	// Dump configuration
	dumpConfig(&opts)

	cfg, err := config.ParseConfig(&opts)
	if err != nil {
		log.Errorf("error in parsing configuration: %v", err)
		os.Exit(1)
	}

	p := pipeline.NewPipeline(cfg)
	if err := p.Run(context.Background()); err != nil {
		log.Errorf("route generation failed: %v", err)
		os.Exit(1)
	}

	log.Debugf("exiting main run")
	os.Exit(0)
}
