// Command groundstationd wires a serial transport through the COBS
// deframer, the protocol parser, the telemetry store and the CAC state
// machine (spec §2's bottom-up/top-down data flow). The cobra root
// command structure follows the pack's CLI convention (muurk-smartap,
// facebook-time).
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padflight/groundstation/cac"
	"github.com/padflight/groundstation/config"
	"github.com/padflight/groundstation/metrics"
	"github.com/padflight/groundstation/protocol"
	"github.com/padflight/groundstation/telemetry"
	"github.com/padflight/groundstation/transport"
)

func main() {
	var (
		fcPort      string
		gsPort      string
		baud        int
		metricsBind string
		configPath  string
	)

	root := &cobra.Command{
		Use:   "groundstationd",
		Short: "Ground-station core: transport, parser, telemetry store and CAC machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(fcPort, gsPort, baud, metricsBind, configPath)
		},
	}
	root.Flags().StringVar(&fcPort, "fc-port", "", "serial device for the FC-direct link")
	root.Flags().StringVar(&gsPort, "gs-port", "", "serial device for the GS-relay link")
	root.Flags().IntVar(&baud, "baud", 115200, "serial baud rate")
	root.Flags().StringVar(&metricsBind, "metrics-addr", ":9110", "Prometheus /metrics bind address")
	root.Flags().StringVar(&configPath, "config", "", "flight config YAML, for the store's MC-local channel-role annotations")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fcPortName, gsPortName string, baud int, metricsBind, configPath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("groundstationd: building logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	store := telemetry.NewStore()

	if configPath != "" {
		cfg, err := config.LoadYAMLFile(configPath)
		if err != nil {
			return err
		}
		store.ApplyConfig(cfg)
	}

	var fcPort transport.Port
	machine := cac.NewMachine(
		func(b []byte) {
			if fcPort == nil {
				log.Warnw("dropping outbound command: no fc-port open")
				return
			}
			if err := transport.SendFrame(fcPort, b); err != nil {
				log.Errorw("sending command frame", "error", err)
			}
		},
		func(ui cac.UIState) {
			log.Infow("cac phase change", "phase", ui.Phase.String(), "busy", ui.Busy, "error", ui.Error)
		},
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(store))
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Infow("metrics listening", "addr", metricsBind)
		if err := http.ListenAndServe(metricsBind, nil); err != nil {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()

	if fcPortName != "" {
		fcPort, err = transport.OpenSerial(fcPortName, baud)
		if err != nil {
			return err
		}
		stop := transport.StartReceive(fcPort, func(frame []byte, ferr error) {
			handleFrame(log, store, machine, telemetry.FCLink, frame, ferr)
		})
		defer stop()
		store.SetConnection(telemetry.FCLink, true)
	}
	if gsPortName != "" {
		gsPort, err := transport.OpenSerial(gsPortName, baud)
		if err != nil {
			return err
		}
		stop := transport.StartReceive(gsPort, func(frame []byte, ferr error) {
			handleFrame(log, store, machine, telemetry.GSLink, frame, ferr)
		})
		defer stop()
		store.SetConnection(telemetry.GSLink, true)
	}

	ticker := time.NewTicker(100 * time.Millisecond) // ~10 Hz per §5
	defer ticker.Stop()
	for range ticker.C {
		store.TickStale(time.Now())
	}
	return nil
}

// handleFrame dispatches one decoded frame (or framing/link-termination
// error) into the store and CAC machine. A link's terminal read error
// (transport.ErrClosed, including EOF) resets that link's telemetry to
// defaults per §4.H's SetConnection(false) semantics; a mid-stream
// framing error (overflow, bad COBS body) is logged and dropped, the
// link otherwise considered live.
func handleFrame(log *zap.SugaredLogger, store *telemetry.Store, machine *cac.Machine, link telemetry.Link, frame []byte, ferr error) {
	if ferr != nil {
		if errors.Is(ferr, transport.ErrClosed) {
			log.Warnw("link closed", "link", link, "error", ferr)
			store.SetConnection(link, false)
			return
		}
		log.Warnw("framing error", "link", link, "error", ferr)
		return
	}

	msg, err := protocol.Parse(frame)
	if err != nil {
		log.Warnw("structural parse error", "error", err)
		return
	}

	msg, valid := repairIfNeeded(log, frame, msg)
	if !valid {
		store.RecordFrame(false)
		return
	}

	now := time.Now()
	switch m := msg.(type) {
	case protocol.FCFastMessage:
		store.UpdateFromFCFast(m, now)
		machine.OnTelemetryStatus(m.Status)
		store.RecordFrame(true)
	case protocol.FCGPSMessage:
		store.UpdateFromGPS(m, now)
		store.RecordFrame(true)
	case protocol.FCEventMessage:
		store.UpdateFromEvent(m, now)
		store.RecordFrame(true)
	case protocol.GSTelemMessage:
		store.UpdateFromGSTelem(m, now)
		machine.OnTelemetryStatus(m.Status)
		store.RecordFrame(m.CRCOk)
	case protocol.HandshakeMessage:
		fw := m.FWVersion
		store.SetProtocolOK(m.CRCOk, &fw, nil)
		store.RecordFrame(m.CRCOk)
	default:
		machine.OnMessage(msg)
	}
}

// repairIfNeeded applies Stage-1 single-bit correction to a direct-FC
// message (FC_FAST/FC_GPS/FC_EVENT) whose CRC failed to verify,
// re-parsing the corrected frame on success (§4.G, §7 CRC-error
// policy). Any other message type is returned as-is and reported valid;
// an uncorrectable direct-FC frame is reported invalid so the caller
// drops it.
func repairIfNeeded(log *zap.SugaredLogger, frame []byte, msg protocol.Message) (protocol.Message, bool) {
	var crcOk bool
	switch m := msg.(type) {
	case protocol.FCFastMessage:
		crcOk = m.CRCOk
	case protocol.FCGPSMessage:
		crcOk = m.CRCOk
	case protocol.FCEventMessage:
		crcOk = m.CRCOk
	default:
		return msg, true
	}

	if crcOk {
		return msg, true
	}

	fixed, bitPos, ok := protocol.CorrectFrame(msg.ID(), frame)
	if !ok {
		log.Warnw("uncorrectable CRC failure, dropping frame", "id", msg.ID())
		return nil, false
	}

	repaired, err := protocol.Parse(fixed)
	if err != nil {
		log.Warnw("re-parsing corrected frame failed", "id", msg.ID(), "error", err)
		return nil, false
	}

	log.Infow("Stage-1 corrected single-bit error", "id", msg.ID(), "bit", bitPos)

	switch m := repaired.(type) {
	case protocol.FCFastMessage:
		m.Corrected = true
		return m, true
	case protocol.FCGPSMessage:
		m.Corrected = true
		return m, true
	case protocol.FCEventMessage:
		m.Corrected = true
		return m, true
	default:
		return repaired, true
	}
}
