////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/convsync/cmdUtils"
	"gitlab.com/elixxir/convsync/session"
)

var profiler interface{ Stop() }

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		jww.ERROR.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convsync",
	Short: "Runs a conversation sync client against a chat service",
	Args:  cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdUtils.InitLog(viper.GetUint(cmdUtils.LogLevelFlag),
			viper.GetString(cmdUtils.LogFlag))
		if dir := viper.GetString(cmdUtils.ProfileCpuFlag); dir != "" {
			profiler = profile.Start(profile.CPUProfile,
				profile.ProfilePath(dir), profile.Quiet)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP(cmdUtils.LogLevelFlag, "v", 0,
		"Verbose mode for debugging")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.LogLevelFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.LogFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.LogFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.ServiceFlag, "", "",
		"Base URL of the chat service")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.ServiceFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.TokenFlag, "", "",
		"Bearer token for the account")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.TokenFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.AccountFlag, "a", "",
		"Account identifier the session belongs to")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.AccountFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.SessionFlag, "s", "session",
		"Directory holding local session storage")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.SessionFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.PasswordFlag, "p", "",
		"Password for local session storage")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.PasswordFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.ParamsFlag, "", "",
		"JSON session parameters, unset fields take their defaults")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.ParamsFlag, rootCmd)

	rootCmd.PersistentFlags().StringP(cmdUtils.ConfigFlag, "c", "",
		"Config file, defaults to ./convsync.yaml if present")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.ConfigFlag, rootCmd)

	rootCmd.PersistentFlags().Duration(cmdUtils.WaitTimeoutFlag,
		30*time.Second, "Timeout for a command's service calls")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.WaitTimeoutFlag, rootCmd)

	rootCmd.PersistentFlags().String(cmdUtils.ProfileCpuFlag, "",
		"Enables CPU profiling, writing the profile to this directory")
	cmdUtils.BindPersistentFlagHelper(cmdUtils.ProfileCpuFlag, rootCmd)
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(cmdUtils.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := cmdUtils.ReadConfig(viper.GetString(cmdUtils.ConfigFlag)); err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
}

// commandContext returns a context bounded by the wait timeout that is also
// canceled on an interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx,
		viper.GetDuration(cmdUtils.WaitTimeoutFlag))
	return ctx, func() {
		cancel()
		stop()
	}
}

// printErrors prints the error held by each of the session's error slots.
func printErrors(s *session.Session) {
	for _, slot := range s.ErrorSlots() {
		if state := slot.Current(); state != nil {
			fmt.Fprintf(os.Stderr, "%s error (x%d): %v\n", slot.Area(),
				state.Count, state.Err)
		}
	}
}
