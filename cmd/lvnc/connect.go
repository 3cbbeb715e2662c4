package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/livenative-dev/livenative"
	"github.com/livenative-dev/livenative/pkg/dom"
)

type printingHandler struct{}

func (printingHandler) HandleChange(change dom.ChangeType, node dom.NodeRef, data dom.NodeData, parent dom.NodeRef) {
	fmt.Printf("-- %s node %d\n", change, node)
}

func connectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "connect <url>",
		Short: "Connect a live session and stream rendered documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &livenative.Config{
				Format:       format,
				PatchHandler: printingHandler{},
				LogLevel:     livenative.LogWarn,
			}
			c, err := livenative.Connect(args[0], cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			watch := c.WatchStatus()
			for {
				select {
				case status := <-watch:
					fmt.Printf("== %s\n", status.State)
					if status.State == livenative.StateConnected && status.Document != nil {
						fmt.Println(status.Document.String())
					}
					if status.State == livenative.StateFatalError {
						return status.Err
					}
				case <-interrupt:
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "swiftui", "value sent as _format")
	return cmd
}
