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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/cmdUtils"
	"gitlab.com/elixxir/convsync/event"
	"gitlab.com/elixxir/convsync/messages"
	"gitlab.com/elixxir/convsync/metrics"
)

// watchCmd runs the session's pollers until interrupted, printing every
// change.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls conversations and prints changes until interrupted",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := cmdUtils.InitSession()

		s.Conversations().RegisterUpdateCallback(
			func(accepted, requests []api.Conversation) {
				fmt.Printf("conversations: %d accepted, %d requests\n",
					len(accepted), len(requests))
			})
		s.Messages().RegisterUpdateCallback(
			func(convoID string, entries []messages.Entry) {
				if len(entries) > 0 {
					fmt.Println(cmdUtils.FormatEntry(entries[len(entries)-1]))
				}
			})
		for _, slot := range s.ErrorSlots() {
			area := slot.Area()
			slot.RegisterUpdateCallback(func(state *event.ErrorState) {
				if state != nil {
					fmt.Fprintf(os.Stderr, "%s error (x%d): %v\n", area,
						state.Count, state.Err)
				}
			})
		}
		err := s.Events().RegisterEventCallback("cli",
			func(priority int, category, evtType, details string) {
				jww.INFO.Printf("[Event] %d %s %s: %s", priority, category,
					evtType, details)
			})
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}

		var server *http.Server
		if addr := viper.GetString(cmdUtils.MetricsAddrFlag); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			server = &http.Server{Addr: addr, Handler: mux,
				ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := server.ListenAndServe(); err != http.ErrServerClosed {
					jww.ERROR.Printf("Metrics server failed: %+v", err)
				}
			}()
			jww.INFO.Printf("Serving metrics on %s", addr)
		}

		if err = s.StartServices(); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
			syscall.SIGTERM)
		defer stop()

		if err = s.Conversations().LoadConversations(ctx, true); err != nil {
			jww.WARN.Printf("Initial load failed: %+v", err)
		}
		if convo := viper.GetString(cmdUtils.ConvoFlag); convo != "" {
			if err = s.OpenConversation(ctx, convo); err != nil {
				jww.WARN.Printf("Failed to open %s: %+v", convo, err)
			}
		}

		<-ctx.Done()
		jww.INFO.Printf("Shutting down")

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				5*time.Second)
			_ = server.Shutdown(shutdownCtx)
			cancel()
		}
		if err = s.StopServices(
			viper.GetDuration(cmdUtils.WaitTimeoutFlag)); err != nil {
			jww.ERROR.Printf("Failed to stop services cleanly: %+v", err)
		}
	},
}

func init() {
	watchCmd.Flags().String(cmdUtils.ConvoFlag, "",
		"Conversation to display and poll for messages")
	cmdUtils.BindFlagHelper(cmdUtils.ConvoFlag, watchCmd)

	watchCmd.Flags().String(cmdUtils.MetricsAddrFlag, "",
		"Address to serve Prometheus metrics on, disabled if empty")
	cmdUtils.BindFlagHelper(cmdUtils.MetricsAddrFlag, watchCmd)

	rootCmd.AddCommand(watchCmd)
}
