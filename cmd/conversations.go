////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/convsync/cmdUtils"
	"gitlab.com/elixxir/convsync/conversations"
	"gitlab.com/elixxir/convsync/session"
)

// convosCmd lists and changes conversations.
var convosCmd = &cobra.Command{
	Use:   "convos",
	Short: "Lists the account's conversations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()
		ctx, cancel := commandContext()
		defer cancel()
		r := s.Conversations()

		requests := viper.GetBool(cmdUtils.RequestsFlag)
		var err error
		if requests {
			err = r.LoadRequests(ctx, true)
		} else {
			err = r.LoadConversations(ctx, true)
		}
		if err != nil {
			printErrors(s)
			jww.FATAL.Panicf("Failed to load conversations: %+v", err)
		}

		if term := viper.GetString(cmdUtils.SearchFlag); term != "" {
			res := r.SearchLocal(term, s.Account())
			for _, c := range res.Conversations {
				fmt.Println(cmdUtils.FormatConversation(c, s.Profiles(),
					s.Account()))
			}
			for _, p := range res.Profiles {
				fmt.Printf("profile %s (%s)\n", p.ID, p.Name())
			}
			return
		}

		list := r.Conversations()
		if requests {
			list = r.Requests()
		}
		for _, c := range list {
			fmt.Println(cmdUtils.FormatConversation(c, s.Profiles(),
				s.Account()))
		}
		fmt.Printf("%d unread, %d requests\n", r.TotalUnread(),
			r.RequestCount())
	},
}

// convoAction builds a subcommand applying one registry mutation to the
// conversation named by its argument.
func convoAction(use, short string,
	apply func(r *conversations.Registry, ctx context.Context, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <conversation>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := cmdUtils.InitSession()
			ctx, cancel := commandContext()
			defer cancel()
			runConvoAction(ctx, s, use, args[0], apply)
		},
	}
}

func runConvoAction(ctx context.Context, s *session.Session, use, id string,
	apply func(r *conversations.Registry, ctx context.Context, id string) error) {
	r := s.Conversations()
	if err := r.LoadConversations(ctx, true); err != nil {
		jww.WARN.Printf("Failed to load conversations: %+v", err)
	}
	if err := r.LoadRequests(ctx, true); err != nil {
		jww.WARN.Printf("Failed to load requests: %+v", err)
	}
	if err := apply(r, ctx, id); err != nil {
		printErrors(s)
		jww.FATAL.Panicf("Failed to %s %s: %+v", use, id, err)
	}
	fmt.Printf("%s %s: ok\n", use, id)
}

func init() {
	convosCmd.Flags().Bool(cmdUtils.RequestsFlag, false,
		"List message requests instead of accepted conversations")
	cmdUtils.BindFlagHelper(cmdUtils.RequestsFlag, convosCmd)

	convosCmd.Flags().String(cmdUtils.SearchFlag, "",
		"Search cached conversations and profiles for this term")
	cmdUtils.BindFlagHelper(cmdUtils.SearchFlag, convosCmd)

	convosCmd.AddCommand(
		convoAction("mute", "Mutes a conversation",
			(*conversations.Registry).Mute),
		convoAction("unmute", "Unmutes a conversation",
			(*conversations.Registry).Unmute),
		convoAction("leave", "Leaves a conversation",
			(*conversations.Registry).Leave),
		convoAction("accept", "Accepts a message request",
			(*conversations.Registry).AcceptConversation),
		convoAction("decline", "Declines a message request",
			(*conversations.Registry).DeclineRequest),
		convoAction("read", "Marks a conversation as read",
			(*conversations.Registry).MarkConversationAsRead),
		&cobra.Command{
			Use:   "read-all",
			Short: "Marks every conversation as read",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				s := cmdUtils.InitSession()
				ctx, cancel := commandContext()
				defer cancel()
				runConvoAction(ctx, s, "read-all", "*",
					func(r *conversations.Registry, ctx context.Context,
						_ string) error {
						return r.MarkAllConversationsAsRead(ctx)
					})
			},
		},
	)
	rootCmd.AddCommand(convosCmd)
}
