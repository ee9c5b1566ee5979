////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmdUtils

import (
	"os"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/convsync/session"
)

// InitSession opens the session described by the session flags. Missing
// required flags are fatal.
func InitSession() *session.Session {
	params, err := session.GetParameters(viper.GetString(ParamsFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse session params: %+v", err)
	}

	service := viper.GetString(ServiceFlag)
	account := viper.GetString(AccountFlag)
	storeDir := viper.GetString(SessionFlag)
	for flag, value := range map[string]string{ServiceFlag: service,
		AccountFlag: account, SessionFlag: storeDir} {
		if value == "" {
			jww.FATAL.Panicf("--%s is required", flag)
		}
	}
	jww.DEBUG.Printf("sessionDir: %v", storeDir)

	s, err := session.Open(service, viper.GetString(TokenFlag), account,
		storeDir, ParsePassword(viper.GetString(PasswordFlag)), params)
	if err != nil {
		jww.FATAL.Panicf("Failed to open session: %+v", err)
	}
	return s
}

// ParsePassword returns the explicit password if set, otherwise the password
// environment variable.
func ParsePassword(pwStr string) string {
	if pwStr != "" {
		return pwStr
	}
	if env := os.Getenv(EnvPrefix + "_PASSWORD"); env != "" {
		return env
	}
	jww.WARN.Printf("No storage password set, storage is keyed by an " +
		"empty password")
	return ""
}

// ReadConfig loads the config file, if one was given. A missing default file
// is not an error.
func ReadConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("convsync")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return errors.WithMessage(err, "failed to read config")
	}
	jww.INFO.Printf("Using config file %s", viper.ConfigFileUsed())
	return nil
}
