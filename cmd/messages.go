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
	"github.com/spf13/viper"

	"gitlab.com/elixxir/convsync/cmdUtils"
	"gitlab.com/elixxir/convsync/emoji"
)

// messagesCmd prints the newest page of a conversation.
var messagesCmd = &cobra.Command{
	Use:   "messages <conversation>",
	Short: "Prints the newest messages of a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		if err := s.Messages().LoadMessages(ctx, args[0], true); err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to load messages: %+v", err)
		}
		for _, e := range s.Messages().Messages(args[0]) {
			fmt.Println(cmdUtils.FormatEntry(e))
		}
		if typing := s.Messages().Typing(args[0]); len(typing) > 0 {
			fmt.Printf("typing: %v\n", typing)
		}
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation>",
	Short: "Sends a message to a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		if !s.Messages().SendMessage(ctx, args[0],
			viper.GetString(cmdUtils.MessageFlag)) {
			printErrors(s)
			jww.FATAL.Panicf("Message to %s was not sent", args[0])
		}
		fmt.Println("sent")
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation> <message>",
	Short: "Deletes a message for this account only",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		if err := s.Messages().LoadMessages(ctx, args[0], true); err != nil {
			jww.FATAL.Panicf("Failed to load messages: %+v", err)
		}
		err := s.Messages().DeleteMessageForSelf(ctx, args[0], args[1])
		if err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to delete %s: %+v", args[1], err)
		}
		fmt.Println("deleted")
	},
}

var reactCmd = &cobra.Command{
	Use:   "react <conversation> <message> <emoji>",
	Short: "Toggles the account's reaction on a message",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()

		if err := s.Messages().LoadMessages(ctx, args[0], true); err != nil {
			jww.FATAL.Panicf("Failed to load messages: %+v", err)
		}
		err := s.Reactions().ToggleReaction(ctx, args[0], args[1], args[2])
		if err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to react to %s: %+v", args[1], err)
		}
		msg, exists := s.Messages().Message(args[0], args[1])
		if !exists {
			return
		}
		for _, r := range msg.Reactions {
			fmt.Printf("%s: %s\n", r.ReactorID, emoji.Describe(r.Symbol))
		}
	},
}

func init() {
	sendCmd.Flags().StringP(cmdUtils.MessageFlag, "m", "",
		"Message text to send")
	cmdUtils.BindFlagHelper(cmdUtils.MessageFlag, sendCmd)

	rootCmd.AddCommand(messagesCmd, sendCmd, deleteCmd, reactCmd)
}
