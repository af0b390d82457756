// Command gsctl is a bench tool for one-shot operations against the
// wire formats: config encode/decode, a CRC check over a hex blob, and
// COBS encode/decode — thin cobra wrappers over the config/protocol/cobs
// packages, not a transport client.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/padflight/groundstation/cobs"
	"github.com/padflight/groundstation/config"
	"github.com/padflight/groundstation/protocol"
)

func main() {
	root := &cobra.Command{
		Use:   "gsctl",
		Short: "Bench tool for flight-config and wire-format inspection",
	}
	root.AddCommand(configEncodeCmd(), configDecodeCmd(), crcCmd(), cobsEncodeCmd(), cobsDecodeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configEncodeCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "config-encode",
		Short: "Compile a YAML flight config into the packed binary document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadYAMLFile(in)
			if err != nil {
				return err
			}
			buf := config.Encode(cfg)
			if out == "" {
				fmt.Println(hex.EncodeToString(buf))
				return nil
			}
			return os.WriteFile(out, buf, 0o644)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input YAML path")
	cmd.Flags().StringVar(&out, "out", "", "output binary path (stdout hex if omitted)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func configDecodeCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "config-decode",
		Short: "Decode a packed binary flight config, verifying its CRC, into YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("gsctl: reading %s: %w", in, err)
			}
			cfg, err := config.Decode(buf)
			if err != nil {
				return err
			}
			data, err := config.MarshalYAML(cfg)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(string(data))
				return nil
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input binary config path")
	cmd.Flags().StringVar(&out, "out", "", "output YAML path (stdout if omitted)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func crcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crc <hex-bytes>",
		Short: "Compute the CRC-32/ISO-HDLC check value of a hex-encoded blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("gsctl: decoding hex: %w", err)
			}
			fmt.Printf("%08x\n", protocol.ComputeCRC32(raw))
			return nil
		},
	}
	return cmd
}

func cobsEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cobs-encode <hex-bytes>",
		Short: "COBS-encode a hex-encoded blob, appending the 0x00 delimiter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("gsctl: decoding hex: %w", err)
			}
			encoded := append(cobs.Encode(raw), 0x00)
			fmt.Println(hex.EncodeToString(encoded))
			return nil
		},
	}
	return cmd
}

func cobsDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cobs-decode <hex-bytes>",
		Short: "COBS-decode a hex-encoded stuffed frame (delimiter optional)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("gsctl: decoding hex: %w", err)
			}
			if len(raw) > 0 && raw[len(raw)-1] == 0x00 {
				raw = raw[:len(raw)-1]
			}
			decoded, err := cobs.Decode(raw)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(decoded))
			return nil
		},
	}
	return cmd
}
