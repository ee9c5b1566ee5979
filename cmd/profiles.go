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
)

var profilesCmd = &cobra.Command{
	Use:   "profiles <actor>...",
	Short: "Fetches and prints profiles through the cache",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		found := s.Profiles().EnsureProfiles(ctx, args, s.Client())
		for _, id := range args {
			e, exists := found[id]
			if !exists {
				fmt.Printf("%s: unknown\n", id)
				continue
			}
			fmt.Printf("%s: %s\n", e.ID, e.Name())
		}
	},
}

var profilesMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Runs one maintenance pass over the shared profile store",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		removed, err := s.SharedProfiles().Maintain()
		if err != nil {
			jww.FATAL.Panicf("Maintenance failed: %+v", err)
		}
		fmt.Printf("removed %d entries, %d remain\n", removed,
			s.SharedProfiles().Len())
	},
}

func init() {
	profilesCmd.AddCommand(profilesMaintainCmd)
	rootCmd.AddCommand(profilesCmd)
}
