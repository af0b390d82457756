// Command gsmon is a live terminal dashboard, adapted from
// Regentag-go1090/main.go's gocui layout/update-loop shape: that
// dashboard redrew an aircraft table on every decoded Mode-S message;
// this one opens the same transport+parser+store+CAC pipeline as
// groundstationd and redraws a flight snapshot and CAC status panel on
// every telemetry mutation. It is a bench instrument for engineers, not
// the product's desktop renderer (explicitly out of scope).
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/awesome-gocui/gocui"
	. "github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/padflight/groundstation/cac"
	"github.com/padflight/groundstation/protocol"
	"github.com/padflight/groundstation/telemetry"
	"github.com/padflight/groundstation/transport"
)

type dashboard struct {
	store   *telemetry.Store
	machine *cac.Machine
	lastUI  cac.UIState
}

func (d *dashboard) update(g *gocui.Gui) error {
	snap := d.store.Snapshot()

	s, err := g.View("status")
	if err == nil {
		s.Clear()
		fmt.Fprintf(s, " FC:%s  GS:%s  STATE:%s  LAST UPDATE: %s\n",
			linkFlag(snap.FCConnected),
			linkFlag(snap.GSConnected),
			Bold(Yellow(snap.FSMState.String())),
			Green(time.Now().Format("15:04:05")))
	}

	f, err := g.View("flight")
	if err == nil {
		f.Clear()
		fmt.Fprintln(f, " ALT(m)   VEL(m/s)  MACH   QBAR(Pa)  ROLL   PITCH   YAW   BATT(V)")
		fmt.Fprintln(f, " ======================================================================")
		fmt.Fprintln(f, Sprintf(Yellow(" %7.1f  %8.1f  %5.2f  %8.1f  %5.1f  %5.1f  %5.1f  %6.2f"),
			snap.AltitudeM, snap.VelocityMps, snap.Mach, snap.QBarPa,
			snap.RollDeg, snap.PitchDeg, snap.YawDeg, snap.BattV))
	}

	p, err := g.View("pyro")
	if err == nil {
		p.Clear()
		fmt.Fprintln(p, " CH  ROLE      ARMED  CONT  FIRED")
		for i, ch := range snap.Pyro {
			fmt.Fprintln(p, Sprintf(" %2d  %-8s  %-5v  %-4v  %v", i+1, ch.Role, ch.Armed, ch.Continuity, ch.Fired))
		}
	}

	c, err := g.View("cac")
	if err == nil {
		c.Clear()
		ui := d.lastUI
		fmt.Fprintf(c, " PHASE:%s  BUSY:%v  RETRY:%d  ERR:%s\n",
			Bold(Cyan(ui.Phase.String())), ui.Busy, ui.RetryCount, ui.Error)
	}

	ev, err := g.View("events")
	if err == nil {
		ev.Clear()
		start := 0
		if len(snap.Events) > 10 {
			start = len(snap.Events) - 10
		}
		for _, e := range snap.Events[start:] {
			fmt.Fprintf(ev, " %s  %s\n", e.At.Format("15:04:05"), e.TypeName)
		}
	}

	return nil
}

func linkFlag(up bool) string {
	if up {
		return Sprintf(Green("UP"))
	}
	return Sprintf(Red("DOWN"))
}

func main() {
	var (
		fcPortName string
		gsPortName string
		baud       int
	)

	root := &cobra.Command{
		Use:   "gsmon",
		Short: "Terminal dashboard over the live telemetry and CAC state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(fcPortName, gsPortName, baud)
		},
	}
	root.Flags().StringVar(&fcPortName, "fc-port", "", "serial device for the FC-direct link")
	root.Flags().StringVar(&gsPortName, "gs-port", "", "serial device for the GS-relay link")
	root.Flags().IntVar(&baud, "baud", 115200, "serial baud rate")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fcPortName, gsPortName string, baud int) error {
	store := telemetry.NewStore()
	d := &dashboard{store: store}

	var fcPort transport.Port
	d.machine = cac.NewMachine(
		func(b []byte) {
			if fcPort == nil {
				return
			}
			if err := transport.SendFrame(fcPort, b); err != nil {
				log.Printf("gsmon: sending command frame: %v", err)
			}
		},
		func(ui cac.UIState) { d.lastUI = ui },
	)

	g, err := gocui.NewGui(gocui.OutputNormal, false)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	g.SetManagerFunc(layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		log.Panicln(err)
	}

	stopSub := store.Subscribe(func(telemetry.Snapshot) {
		g.Update(d.update)
	})
	defer stopSub()

	if fcPortName != "" {
		fcPort, err = transport.OpenSerial(fcPortName, baud)
		if err != nil {
			return err
		}
		stop := transport.StartReceive(fcPort, func(frame []byte, ferr error) {
			handleFrame(d, telemetry.FCLink, frame, ferr)
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
			handleFrame(d, telemetry.GSLink, frame, ferr)
		})
		defer stop()
		store.SetConnection(telemetry.GSLink, true)
	}

	go func() {
		for ; ; <-time.Tick(500 * time.Millisecond) {
			store.TickStale(time.Now())
			g.Update(d.update)
		}
	}()

	if err := g.MainLoop(); err != nil && !gocui.IsQuit(err) {
		log.Panicln(err)
	}
	return nil
}

// handleFrame mirrors groundstationd's dispatch: a terminal link error
// resets that link's telemetry, a direct-FC CRC failure is run through
// Stage-1 correction before being dropped, and a handshake result
// updates the store's protocol-OK flag instead of reaching the CAC
// machine (which only reacts while AwaitingAck).
func handleFrame(d *dashboard, link telemetry.Link, frame []byte, ferr error) {
	if ferr != nil {
		if errors.Is(ferr, transport.ErrClosed) {
			d.store.SetConnection(link, false)
			return
		}
		return
	}
	msg, err := protocol.Parse(frame)
	if err != nil {
		return
	}

	msg, valid := repairIfNeeded(frame, msg)
	if !valid {
		d.store.RecordFrame(false)
		return
	}

	now := time.Now()
	switch m := msg.(type) {
	case protocol.FCFastMessage:
		d.store.UpdateFromFCFast(m, now)
		d.machine.OnTelemetryStatus(m.Status)
		d.store.RecordFrame(true)
	case protocol.FCGPSMessage:
		d.store.UpdateFromGPS(m, now)
		d.store.RecordFrame(true)
	case protocol.FCEventMessage:
		d.store.UpdateFromEvent(m, now)
		d.store.RecordFrame(true)
	case protocol.GSTelemMessage:
		d.store.UpdateFromGSTelem(m, now)
		d.machine.OnTelemetryStatus(m.Status)
		d.store.RecordFrame(m.CRCOk)
	case protocol.HandshakeMessage:
		fw := m.FWVersion
		d.store.SetProtocolOK(m.CRCOk, &fw, nil)
		d.store.RecordFrame(m.CRCOk)
	default:
		d.machine.OnMessage(msg)
	}
}

// repairIfNeeded is groundstationd's repair step, duplicated here since
// each bench command is a thin, self-contained main package.
func repairIfNeeded(frame []byte, msg protocol.Message) (protocol.Message, bool) {
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

	fixed, _, ok := protocol.CorrectFrame(msg.ID(), frame)
	if !ok {
		return nil, false
	}

	repaired, err := protocol.Parse(fixed)
	if err != nil {
		return nil, false
	}

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

func layout(g *gocui.Gui) error {
	const maxX = 80
	_, maxY := g.Size()

	v, _ := g.SetView("status", 0, 0, maxX-2, 2, 0)
	v.Title = " STATUS "
	fmt.Fprintln(v, " FC:--  GS:--  STATE:--")

	v, _ = g.SetView("flight", 0, 3, maxX-2, 6, 0)
	v.Title = " FLIGHT "

	v, _ = g.SetView("pyro", 0, 7, maxX-2, 13, 0)
	v.Title = " PYRO "

	v, _ = g.SetView("cac", 0, 14, maxX-2, 16, 0)
	v.Title = " CAC "

	v, _ = g.SetView("events", 0, 17, maxX-2, maxY-1, 0)
	v.Title = " EVENTS "
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
