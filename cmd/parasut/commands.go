package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adilumer/parasut-api-client/pkg/parasut"
	"github.com/adilumer/parasut-api-client/pkg/utils"
)

// Command-specific flags
var (
	getParams   []string
	revealToken bool
	pdfOutput   string
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			body, err := s.client.ApiHome.Get(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		})
	},
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List the companies visible to the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			if err := s.client.Initialize(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range s.client.CompanyList() {
				marker := " "
				if c.ID == s.client.CompanyID() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\n", marker, c.ID, c.Attributes.Name)
			}
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain a bearer token",
	Long: `Obtain a bearer token, reusing a cached one when still valid.

The token is masked unless --reveal is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			tok, err := s.client.Token(ctx)
			if err != nil {
				return err
			}
			if !revealToken {
				tok = utils.MaskToken(tok)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "GET an arbitrary API path",
	Long: `GET an arbitrary API path and print the JSON response.

Paths starting with "/" are sent as given. Other paths are resolved under
the configured company, e.g. "contacts" becomes /v4/{company_id}/contacts.

Examples:
  parasut get /v4/me
  parasut get contacts --param 'page[size]=5'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(getParams)
		if err != nil {
			return err
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				if s.client.CompanyID() == "" {
					return fmt.Errorf("relative path %q needs a company id", path)
				}
				path = "/v4/" + url.PathEscape(s.client.CompanyID()) + "/" + path
			}

			body, err := s.client.Do(ctx, parasut.Request{
				Method: parasut.MethodGet,
				Path:   path,
				Query:  params,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		})
	},
}

var salesInvoicesCmd = &cobra.Command{
	Use:   "sales-invoices",
	Short: "Work with sales invoices",
}

var salesInvoicePDFCmd = &cobra.Command{
	Use:   "pdf <id>",
	Short: "Download the printable PDF of a sales invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			pdf, err := s.client.SalesInvoices.Print(ctx, args[0])
			if err != nil {
				return err
			}
			if pdfOutput == "" || pdfOutput == "-" {
				_, err = cmd.OutOrStdout().Write(pdf)
				return err
			}
			if err := os.WriteFile(pdfOutput, pdf, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", pdfOutput, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(pdf), pdfOutput)
			return nil
		})
	},
}

func init() {
	getCmd.Flags().StringArrayVarP(&getParams, "param", "p", nil, "query parameter as key=value (repeatable)")
	tokenCmd.Flags().BoolVar(&revealToken, "reveal", false, "print the full token")
	salesInvoicePDFCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "output file (default stdout)")
	salesInvoicesCmd.AddCommand(salesInvoicePDFCmd)
}

func parseParams(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	v := url.Values{}
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		v.Add(key, val)
	}
	return v, nil
}

// printJSON indents body when it is JSON and writes it verbatim otherwise.
func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
