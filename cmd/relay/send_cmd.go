package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/casaflow/relay-go/internal/transport"
)

var (
	flagBody     string
	flagHeaders  []string
	flagSkipAuth bool
)

// addRequestFlags registers the flags shared by send and probe.
func addRequestFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&flagBody, "body", "b", "", "request body")
	fs.StringArrayVarP(&flagHeaders, "header", "H", nil, "request header as 'Key: Value' (repeatable)")
	fs.BoolVar(&flagSkipAuth, "skip-auth", false, "do not attach the stored credential")
}

// buildDescriptor turns the shared request flags plus METHOD and PATH args
// into a transport descriptor.
func buildDescriptor(method, path string) (*transport.Descriptor, error) {
	header := make(http.Header)
	for _, h := range flagHeaders {
		key, value, found := strings.Cut(h, ":")
		if !found {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	return &transport.Descriptor{
		Method:   strings.ToUpper(method),
		Path:     path,
		Header:   header,
		Body:     []byte(flagBody),
		SkipAuth: flagSkipAuth,
	}, nil
}

var sendCmd = &cobra.Command{
	Use:   "send METHOD PATH",
	Short: "Send a single request through the resilient layer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		d, err := buildDescriptor(args[0], args[1])
		if err != nil {
			return err
		}

		resp, err := a.exec.Execute(cmd.Context(), d)
		if err != nil {
			return err
		}

		fmt.Printf("%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		if len(resp.Body) > 0 {
			fmt.Println(string(resp.Body))
		}
		return nil
	},
}

func init() {
	addRequestFlags(sendCmd.Flags())
}
