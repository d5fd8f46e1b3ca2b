package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon"
	"github.com/soda-auto/telemon/canbus"
	"github.com/soda-auto/telemon/dashboard"
	"github.com/soda-auto/telemon/forwarder"
	"github.com/soda-auto/telemon/ncom"
	"github.com/soda-auto/telemon/receiver"
)

var configFile = flag.String("config", "", "TOML configuration file")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")
var logLevel = flag.String("log-level", "info", "log level")
var logFile = flag.String("log-file", "", "write logs to this file instead of stderr")
var tui = flag.Bool("tui", false, "show the terminal dashboard")
var httpAddr = flag.String("http", "", "serve the chart dashboard on this address")
var pcapFile = flag.String("pcap", "", "replay frames from a pcap capture instead of listening")
var serialPort = flag.String("serial", "", "read frames from a serial port instead of listening")
var forwardConfig = flag.String("forward-config", "", "UDP forwarder configuration file")
var canInterface = flag.String("can", "", "publish IMU frames on this CAN interface")

func main() {
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal("invalid log level: ", err)
	}
	log.SetLevel(level)
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal("unable to open log file: ", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else if *tui {
		// the terminal belongs to the dashboard
		log.SetOutput(io.Discard)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	src, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatal("unable to open frame source: ", err)
	}
	defer src.Close()

	m := telemon.NewMonitor(src, cfg)
	wg := sync.WaitGroup{}
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if *printTelemetry {
		m.AddForwarder(printForwarder{})
	}
	if *forwardConfig != "" {
		fwder, err := forwarder.NewUDPForwarder(*forwardConfig)
		if err != nil {
			log.Fatal("unable to load UDP forwarder: ", err)
		}
		defer fwder.Close()
		goRun(func() {
			_ = fwder.Start(ctx)
		})
		m.AddForwarder(fwder)
	}
	if cfg.CAN.Interface != "" {
		canFwd := canbus.NewForwarder(cfg.CAN.Interface)
		goRun(func() {
			canFwd.Run(ctx)
		})
		m.AddForwarder(canFwd)
	}
	if *testMode {
		goRun(func() {
			runTestMode(ctx, cfg)
		})
	}
	if cfg.Dashboard.HTTPAddr != "" {
		ws := dashboard.NewWebServer(m, cfg.Dashboard.HTTPAddr)
		goRun(func() {
			if err := ws.Start(ctx); err != nil {
				log.Error("HTTP dashboard failed: ", err)
			}
		})
	}
	if *tui {
		goRun(func() {
			if err := dashboard.RunTUI(ctx, m, cfg.Dashboard.Refresh.Duration); err != nil {
				log.Error("terminal dashboard failed: ", err)
			}
			cancel()
		})
	}

	err = m.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		log.Fatal("monitor stopped: ", err)
	}
}

func loadConfig() (telemon.Config, error) {
	cfg := telemon.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = telemon.LoadConfig(*configFile); err != nil {
			return cfg, err
		}
	}
	if *pcapFile != "" {
		cfg.Receiver.PCAPFile = *pcapFile
	}
	if *serialPort != "" {
		cfg.Receiver.SerialPort = *serialPort
	}
	if *httpAddr != "" {
		cfg.Dashboard.HTTPAddr = *httpAddr
	}
	if *canInterface != "" {
		cfg.CAN.Interface = *canInterface
	}
	return cfg, cfg.Validate()
}

func openSource(ctx context.Context, cfg telemon.Config) (telemon.Source, error) {
	r := cfg.Receiver
	switch {
	case r.PCAPFile != "":
		src, err := receiver.OpenPCAP(r.PCAPFile, r.Port)
		if err != nil {
			return nil, err
		}
		src.Realtime = r.PCAPRealtime
		return src, nil
	case r.SerialPort != "":
		return receiver.OpenSerial(r.SerialPort, r.SerialBaud, r.ReadTimeout.Duration)
	}
	return receiver.ListenUDP(ctx, r.UDP())
}

// runTestMode feeds synthetic frames to the configured UDP endpoint.
func runTestMode(ctx context.Context, cfg telemon.Config) {
	host := "127.0.0.1"
	if cfg.Receiver.MulticastGroup != "" {
		host = cfg.Receiver.MulticastGroup
	}
	conn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(cfg.Receiver.Port)))
	if err != nil {
		log.Error("test mode: ", err)
		return
	}
	defer conn.Close()
	err = telemon.RunTestMode(ctx, func(frame []byte) error {
		_, err := conn.Write(frame)
		return err
	})
	log.Infof("test mode stopped: %v", err)
}

type printForwarder struct{}

func (printForwarder) Forward(sample *ncom.Sample, latency telemon.LatencySample) error {
	_, err := fmt.Printf("%+v latency=%dms\n", *sample, latency.InterArrivalMs)
	return err
}
