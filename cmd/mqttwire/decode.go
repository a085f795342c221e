package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttwire"
)

func decodeCmd() *cobra.Command {
	var maxSize uint32

	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode packets from hex",
		Long: `Decode one or more MQTT 5 packets given as hex. Arguments are
joined, so bytes may be split across several arguments.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.Join(args, ""))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}

			r := bytes.NewReader(data)
			for r.Len() > 0 {
				pkt, _, err := mqttwire.ReadPacket(r, maxSize)
				if err != nil {
					return err
				}
				describePacket(cmd.OutOrStdout(), pkt)
			}
			return nil
		},
	}

	cmd.Flags().Uint32Var(&maxSize, "max-size", 0, "Maximum packet size (0 for none)")

	return cmd
}

func describePacket(w io.Writer, pkt mqttwire.Packet) {
	fmt.Fprintf(w, "%s\n", pkt.Type())

	if p, ok := pkt.(mqttwire.PacketWithID); ok {
		fmt.Fprintf(w, "  packet id:   %d\n", p.GetPacketID())
	}

	switch p := pkt.(type) {
	case *mqttwire.ConnectPacket:
		fmt.Fprintf(w, "  client id:   %q\n", p.ClientID)
		fmt.Fprintf(w, "  clean start: %t\n", p.CleanStart)
		fmt.Fprintf(w, "  keep alive:  %d\n", p.KeepAlive)
	case *mqttwire.ConnackPacket:
		fmt.Fprintf(w, "  session:     %t\n", p.SessionPresent)
		describeReason(w, p.ReasonCode)
	case *mqttwire.PublishPacket:
		fmt.Fprintf(w, "  topic:       %q\n", p.Topic)
		fmt.Fprintf(w, "  qos:         %d\n", p.QoS)
		fmt.Fprintf(w, "  payload:     %d bytes\n", len(p.Payload))
	case *mqttwire.PubackPacket:
		describeReason(w, p.ReasonCode)
	case *mqttwire.PubrecPacket:
		describeReason(w, p.ReasonCode)
	case *mqttwire.PubrelPacket:
		describeReason(w, p.ReasonCode)
	case *mqttwire.PubcompPacket:
		describeReason(w, p.ReasonCode)
	case *mqttwire.SubackPacket:
		for _, rc := range p.ReasonCodes {
			describeReason(w, rc)
		}
	case *mqttwire.UnsubackPacket:
		for _, rc := range p.ReasonCodes {
			describeReason(w, rc)
		}
	case *mqttwire.DisconnectPacket:
		describeReason(w, p.ReasonCode)
	case *mqttwire.AuthPacket:
		describeReason(w, p.ReasonCode)
	}

	if p, ok := pkt.(mqttwire.PacketWithProperties); ok {
		p.Properties().Each(func(id mqttwire.PropertyID, value any) {
			fmt.Fprintf(w, "  property:    %s = %v\n", id, value)
		})
	}
}

func describeReason(w io.Writer, rc mqttwire.ReasonCode) {
	fmt.Fprintf(w, "  reason:      0x%02X %s\n", byte(rc), rc)
}
