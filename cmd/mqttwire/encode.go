package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttwire"
)

func encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode packets to hex",
	}

	cmd.AddCommand(encodeAckCmd())

	return cmd
}

func encodeAckCmd() *cobra.Command {
	var (
		packetType   string
		packetID     uint16
		reason       uint8
		reasonString string
		userProps    []string
		maxSize      uint32
	)

	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Encode a PUBACK, PUBREC, PUBREL, PUBCOMP, DISCONNECT or AUTH",
		Long: `Encode an acknowledgement style packet. Reason code and properties
are left out of the output when the omission rule allows it, and reason
string and user properties are dropped when --max-size demands it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var props mqttwire.Properties
			if reasonString != "" {
				props.Set(mqttwire.PropReasonString, reasonString)
			}
			for _, kv := range userProps {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("user property %q is not key=value", kv)
				}
				props.AddUserProperty(key, value)
			}

			pkt, err := ackPacket(packetType, packetID, mqttwire.ReasonCode(reason), props)
			if err != nil {
				return err
			}

			data, err := mqttwire.AppendPacket(nil, pkt, maxSize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&packetType, "type", "t", "puback", "Packet type")
	cmd.Flags().Uint16Var(&packetID, "id", 1, "Packet identifier")
	cmd.Flags().Uint8VarP(&reason, "reason", "r", 0, "Reason code")
	cmd.Flags().StringVar(&reasonString, "reason-string", "", "Reason string property")
	cmd.Flags().StringArrayVar(&userProps, "user-property", nil, "User property as key=value (repeatable)")
	cmd.Flags().Uint32Var(&maxSize, "max-size", 0, "Maximum packet size (0 for none)")

	return cmd
}

func ackPacket(packetType string, id uint16, rc mqttwire.ReasonCode, props mqttwire.Properties) (mqttwire.Packet, error) {
	switch strings.ToLower(packetType) {
	case "puback":
		return &mqttwire.PubackPacket{PacketID: id, ReasonCode: rc, Props: props}, nil
	case "pubrec":
		return &mqttwire.PubrecPacket{PacketID: id, ReasonCode: rc, Props: props}, nil
	case "pubrel":
		return &mqttwire.PubrelPacket{PacketID: id, ReasonCode: rc, Props: props}, nil
	case "pubcomp":
		return &mqttwire.PubcompPacket{PacketID: id, ReasonCode: rc, Props: props}, nil
	case "disconnect":
		return &mqttwire.DisconnectPacket{ReasonCode: rc, Props: props}, nil
	case "auth":
		return &mqttwire.AuthPacket{ReasonCode: rc, Props: props}, nil
	default:
		return nil, fmt.Errorf("unsupported packet type %q", packetType)
	}
}
