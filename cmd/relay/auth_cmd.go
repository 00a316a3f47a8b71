package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/casaflow/relay-go/internal/credstore"
)

var (
	flagAccessToken  string
	flagRefreshToken string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a credential pair for subsequent requests",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.sess.Login(credstore.Credential{
			AccessToken:  flagAccessToken,
			RefreshToken: flagRefreshToken,
		}); err != nil {
			return err
		}

		fmt.Println("Logged in.")
		if exp := credstore.ExpiryOf(flagAccessToken); !exp.IsZero() {
			fmt.Printf("Access token expires %s\n", exp.Format(time.RFC3339))
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored credential",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.sess.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential and session state",
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		cred, ok := a.store.Current()
		if !ok {
			fmt.Println("No credential stored. Run 'relay login'.")
			return nil
		}

		fmt.Println("Credential stored.")
		if exp := credstore.ExpiryOf(cred.AccessToken); !exp.IsZero() {
			if time.Now().After(exp) {
				fmt.Printf("Access token expired %s\n", exp.Format(time.RFC3339))
			} else {
				fmt.Printf("Access token expires %s\n", exp.Format(time.RFC3339))
			}
		}
		if cred.RefreshToken == "" {
			fmt.Println("No refresh token; renewal will require re-login.")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&flagAccessToken, "access-token", "", "access token")
	loginCmd.Flags().StringVar(&flagRefreshToken, "refresh-token", "", "refresh token")
	_ = loginCmd.MarkFlagRequired("access-token")
}
