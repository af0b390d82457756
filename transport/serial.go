package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens the named serial port at baud 8N1, the one concrete
// Port implementation the core ships (DOMAIN STACK: go.bug.st/serial).
// Only cmd/groundstationd and cmd/gsmon call this; the protocol/telemetry/cac
// packages never import go.bug.st/serial directly.
func OpenSerial(name string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: opening %s: %w", name, err)
	}
	return port, nil
}

// ListSerialPorts enumerates candidate serial devices for the CLI's
// port-selection flag.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: listing ports: %w", err)
	}
	return ports, nil
}
