package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radclient"
	"github.com/dlp-radius/goradius/internal/radius"
)

// namedAttr resolves name's wire type from the loaded dictionary and
// parses raw into the corresponding radclient.AttrValue, the same path
// --attr name=value flags go through.
func namedAttr(name, raw string) (radclient.AttrValue, error) {
	def, err := dict.LookupByName(dictionary.NoVendor, name)
	if err != nil {
		return radclient.AttrValue{}, fmt.Errorf("attribute %q: %w", name, err)
	}
	v, err := parseAttrValue(def, raw)
	if err != nil {
		return radclient.AttrValue{}, fmt.Errorf("attribute %q: %w", name, err)
	}
	return radclient.AttrValue{Name: name, Value: v}, nil
}

// authCmd sends an Access-Request and prints the reply.
func authCmd() *cobra.Command {
	var attrs []string
	var username, password string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Send an Access-Request",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			values, err := parseAttrFlags(dict, attrs)
			if err != nil {
				return fmt.Errorf("parse attributes: %w", err)
			}
			if username != "" {
				av, err := namedAttr("User-Name", username)
				if err != nil {
					return err
				}
				values = append(values, av)
			}
			if password != "" {
				av, err := namedAttr("User-Password", password)
				if err != nil {
					return err
				}
				values = append(values, av)
			}

			p, err := rclient.CreateAuthPacket(values...)
			if err != nil {
				return fmt.Errorf("create access-request: %w", err)
			}

			return sendAndPrint(p)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&username, "username", "", "User-Name attribute")
	flags.StringVar(&password, "password", "", "User-Password attribute")
	flags.StringArrayVar(&attrs, "attr", nil, "additional attribute as name=value (repeatable)")

	return cmd
}

// acctCmd sends an Accounting-Request and prints the reply.
func acctCmd() *cobra.Command {
	var attrs []string
	var statusType string

	cmd := &cobra.Command{
		Use:   "acct",
		Short: "Send an Accounting-Request",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			values, err := parseAttrFlags(dict, attrs)
			if err != nil {
				return fmt.Errorf("parse attributes: %w", err)
			}
			if statusType != "" {
				av, err := namedAttr("Acct-Status-Type", statusType)
				if err != nil {
					return err
				}
				values = append(values, av)
			}

			p, err := rclient.CreateAcctPacket(values...)
			if err != nil {
				return fmt.Errorf("create accounting-request: %w", err)
			}

			return sendAndPrint(p)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&statusType, "status-type", "Start", "Acct-Status-Type attribute (e.g. Start, Stop, Interim-Update)")
	flags.StringArrayVar(&attrs, "attr", nil, "additional attribute as name=value (repeatable)")

	return cmd
}

// coaCmd sends a CoA-Request and prints the reply.
func coaCmd() *cobra.Command {
	var attrs []string

	cmd := &cobra.Command{
		Use:   "coa",
		Short: "Send a CoA-Request",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			values, err := parseAttrFlags(dict, attrs)
			if err != nil {
				return fmt.Errorf("parse attributes: %w", err)
			}

			p, err := rclient.CreateCoAPacket(radius.CodeCoARequest, values...)
			if err != nil {
				return fmt.Errorf("create coa-request: %w", err)
			}

			return sendAndPrint(p)
		},
	}

	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute as name=value (repeatable)")

	return cmd
}

// disconnectCmd sends a Disconnect-Request and prints the reply.
func disconnectCmd() *cobra.Command {
	var attrs []string

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Send a Disconnect-Request",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			values, err := parseAttrFlags(dict, attrs)
			if err != nil {
				return fmt.Errorf("parse attributes: %w", err)
			}

			p, err := rclient.CreateCoAPacket(radius.CodeDisconnectRequest, values...)
			if err != nil {
				return fmt.Errorf("create disconnect-request: %w", err)
			}

			return sendAndPrint(p)
		},
	}

	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute as name=value (repeatable)")

	return cmd
}

func sendAndPrint(p *radius.Packet) error {
	reply, err := rclient.SendPacket(context.Background(), p)
	if err != nil {
		return fmt.Errorf("send %s: %w", p.Code, err)
	}

	out, err := formatPacket(reply, outputFormat)
	if err != nil {
		return fmt.Errorf("format reply: %w", err)
	}
	fmt.Print(out)

	return nil
}
