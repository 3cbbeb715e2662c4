package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/livenative-dev/livenative/internal/client"
)

func getCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a dead render and print the session tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := url.Parse(args[0])
			if err != nil {
				return err
			}
			session, err := client.FetchSessionData(http.DefaultClient, target, format, client.ConnectOpts{})
			if err != nil {
				return err
			}

			fmt.Printf("url:         %s\n", session.URL)
			fmt.Printf("phx id:      %s\n", session.PhxID)
			fmt.Printf("csrf token:  %s\n", session.CSRFToken)
			fmt.Printf("live reload: %v\n", session.HasLiveReload)
			for _, style := range session.StyleURLs {
				fmt.Printf("style:       %s\n", style)
			}
			socketURL, err := session.LiveSocketURL()
			if err != nil {
				return err
			}
			fmt.Printf("socket url:  %s\n", socketURL)
			fmt.Println()
			fmt.Println(session.DeadRender.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "swiftui", "value sent as _format")
	return cmd
}
