////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/convsync/cmdUtils"
	"gitlab.com/elixxir/convsync/mls"
)

var mlsCmd = &cobra.Command{
	Use:   "mls",
	Short: "Manages encrypted conversation enrollment",
}

var mlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the local enrollment state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		printMLS(s.MLS())
	},
}

var mlsEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Registers this device, publishes key packages and opts in",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		s.MLS().RegisterStateCallback(func(state mls.State) {
			jww.INFO.Printf("MLS state: %s", state)
		})
		if err := s.MLS().Enable(ctx); err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to enable: %+v", err)
		}
		printMLS(s.MLS())
	},
}

var mlsOptOutCmd = &cobra.Command{
	Use:   "opt-out",
	Short: "Opts out and discards this device's key material",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		if err := s.MLS().OptOut(ctx); err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to opt out: %+v", err)
		}
		printMLS(s.MLS())
	},
}

var mlsReplenishCmd = &cobra.Command{
	Use:   "replenish",
	Short: "Tops up the published key packages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		n, err := s.MLS().ReplenishKeyPackages(ctx)
		if err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to replenish: %+v", err)
		}
		fmt.Printf("published %d key packages\n", n)
		printMLS(s.MLS())
	},
}

func printMLS(b *mls.Bootstrapper) {
	fmt.Printf("state: %s\n", b.State())
	if id := b.DeviceID(); id != "" {
		fmt.Printf("device: %s\n", id)
	}
	fmt.Printf("key packages held: %d\n", b.InventoryCount())
}

func init() {
	mlsCmd.AddCommand(mlsStatusCmd, mlsEnableCmd, mlsOptOutCmd,
		mlsReplenishCmd)
	rootCmd.AddCommand(mlsCmd)
}
