package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rushteam/tracksim/config"
	"github.com/rushteam/tracksim/logging"
)

var (
	cfgFile string
	verbose bool
	version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:           "tracksim",
	Short:         "Content-based track recommendation service",
	Long:          `tracksim recommends tracks that sound similar to one or more seed tracks, using an ANN index over audio and catalog features.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令，出错时以非零状态退出。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or $TRACKSIM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig 读取 .env（可选）与配置文件，并初始化日志。
func loadConfig() (*config.AppConfig, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logging.Init(cfg.Log)
	return cfg, nil
}
