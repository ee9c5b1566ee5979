////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmdUtils

import (
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// This is a list of CLI flag name constants shared between root and
// subcommands. Flags designed for a specific subcommand should go in its
// respective cmd file. Pulling flags using Viper should use the constants
// defined here.
const (
	// Log flags

	LogLevelFlag = "logLevel"
	LogFlag      = "log"

	// Loading a session

	ServiceFlag  = "service"
	TokenFlag    = "token"
	AccountFlag  = "account"
	SessionFlag  = "session"
	PasswordFlag = "password"
	ParamsFlag   = "params"
	ConfigFlag   = "config"

	// Command flags

	ConvoFlag       = "convo"
	MessageFlag     = "message"
	RequestsFlag    = "requests"
	SearchFlag      = "search"
	WaitTimeoutFlag = "waitTimeout"
	MetricsAddrFlag = "metricsAddr"

	// Misc

	ProfileCpuFlag = "profile-cpu"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "CONVSYNC"

// BindFlagHelper binds the key to a pflag.Flag used by Cobra and prints an
// error if one occurs.
func BindFlagHelper(key string, command *cobra.Command) {
	err := viper.BindPFlag(key, command.Flags().Lookup(key))
	if err != nil {
		jww.ERROR.Printf("viper.BindPFlag failed for %q: %+v", key, err)
	}
}

// BindPersistentFlagHelper binds the key to a Persistent pflag.Flag used by
// Cobra and prints an error if one occurs.
func BindPersistentFlagHelper(key string, command *cobra.Command) {
	err := viper.BindPFlag(key, command.PersistentFlags().Lookup(key))
	if err != nil {
		jww.ERROR.Printf("viper.BindPFlag failed for %q: %+v", key, err)
	}
}
