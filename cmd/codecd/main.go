// Command codecd drives one codec card on a Linux host and serves its
// controls on an in-process bus. A line console on stdin issues requests:
//
//	get <control>
//	set <control> <json>
//	stream <verb> [json]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"audiocodec-go/bus"
	"audiocodec-go/drivers/codec"
	"audiocodec-go/services/audio"
	"audiocodec-go/services/audio/config"
	boardcfg "audiocodec-go/services/config"
	"audiocodec-go/services/heartbeat"
	"audiocodec-go/types"
)

func main() {
	var (
		board    = flag.String("board", "standard", "embedded board configuration")
		cfgPath  = flag.String("config", "", "configuration document (JSON), replaces -board")
		irqName  = flag.String("irq", "", "codec interrupt GPIO name")
		logLevel = flag.String("log-level", "info", "logrus level")
	)
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}
	entry := logrus.NewEntry(log)

	if err := run(entry, *board, *cfgPath, *irqName); err != nil {
		entry.WithError(err).Fatal("codecd")
	}
}

func run(log *logrus.Entry, board, cfgPath, irqName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := boardcfg.NewConfigService(board)
	docs.Log = log
	if cfgPath != "" {
		raw, err := os.ReadFile(cfgPath)
		if err != nil {
			return errors.Wrap(err, "read config")
		}
		docs.Document = raw
	}
	// The audio section also names the bus and pins, needed before the
	// service starts.
	section, err := docs.Section("audio")
	if err != nil {
		return err
	}
	cfg, err := config.Load(section)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph init")
	}
	i2cBus, err := i2creg.Open(cfg.Bus.I2C)
	if err != nil {
		return errors.Wrapf(err, "open i2c %q", cfg.Bus.I2C)
	}
	defer i2cBus.Close()

	dev := codec.New(i2cBus, codec.Config{Address: cfg.Bus.Addr})
	if err := dev.CheckID(); err != nil {
		return err
	}
	port := audio.NewCodecPort(dev)

	codes := []uint16{config.DefaultKeyNormal, config.DefaultKeyLPSD}
	for _, k := range []uint16{cfg.Voice.KeyNormal, cfg.Voice.KeyLPSD} {
		if k != 0 && k != config.DefaultKeyNormal && k != config.DefaultKeyLPSD {
			codes = append(codes, k)
		}
	}
	keys, err := audio.OpenUInput("codecd voice wakeup", codes...)
	if err != nil {
		log.WithError(err).Warn("no uinput; non-seamless delivery disabled")
	}

	b := bus.NewBus(16)
	svcConn := b.NewConnection("audio")
	uiConn := b.NewConnection("console")

	cards := make(chan *audio.Card, 1)
	var current atomic.Pointer[audio.Card]
	factory := func(c config.Card) (*audio.Card, error) {
		d := audio.Deps{
			Port:     port,
			Codec:    port,
			BiasPins: biasPins(log, c.Pins),
			Events:   svcConn,
			Locker:   audio.SysfsWakeLock("codecd"),
			Log:      log,
		}
		if keys != nil {
			d.Keys = keys
		}
		card, err := audio.NewCard(c, d)
		if err == nil {
			current.Store(card)
			select {
			case <-cards:
			default:
			}
			cards <- card
		}
		return card, err
	}

	mon := uiConn.Subscribe(bus.T("hal", "cap", "audio", "#"))
	go func() {
		for m := range mon.Channel() {
			log.WithField("topic", topicString(m.Topic)).Debugf("%+v", m.Payload)
		}
	}()

	go audio.Run(ctx, svcConn, factory, log)
	hb := &heartbeat.Service{
		Source: func() (types.AudioDiag, bool) {
			c := current.Load()
			if c == nil {
				return types.AudioDiag{}, false
			}
			return c.Diagnostics(), true
		},
		Log: log,
	}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}
	docs.Start(ctx, b.NewConnection("config"))

	if irqName != "" {
		go serveIRQ(ctx, log, irqName, port, cards)
	}

	console(ctx, log, uiConn)
	<-ctx.Done()
	if keys != nil {
		_ = keys.Close()
	}
	return nil
}

func biasPins(log *logrus.Entry, pc config.PinConfig) map[string]audio.BiasPin {
	out := map[string]audio.BiasPin{}
	for name, gpioName := range map[string]string{"main": pc.MainBias, "sub": pc.SubBias} {
		if gpioName == "" {
			continue
		}
		p := gpioreg.ByName(gpioName)
		if p == nil {
			log.WithField("pin", gpioName).Warn("bias pin not found")
			continue
		}
		out[name] = p
	}
	return out
}

// serveIRQ follows the current card; a rebuilt card gets a fresh dispatcher.
func serveIRQ(ctx context.Context, log *logrus.Entry, name string, port audio.Port, cards <-chan *audio.Card) {
	p := gpioreg.ByName(name)
	if p == nil {
		log.WithField("pin", name).Error("irq pin not found")
		return
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		log.WithError(err).Error("irq pin setup failed")
		return
	}
	var cancel context.CancelFunc = func() {}
	defer func() { cancel() }()
	for {
		select {
		case <-ctx.Done():
			return
		case card := <-cards:
			cancel()
			var qctx context.Context
			qctx, cancel = context.WithCancel(ctx)
			audio.NewIRQ(p, port, card, log).Start(qctx)
		}
	}
}

func console(ctx context.Context, log *logrus.Entry, conn *bus.Connection) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(os.Stderr, "parse:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		var topic bus.Topic
		var payload any
		switch {
		case args[0] == "get" && len(args) == 2:
			topic = bus.T("hal", "cap", "audio", args[1], "control", "get")
		case args[0] == "set" && len(args) >= 2:
			topic = bus.T("hal", "cap", "audio", args[1], "control", "set")
			payload = strings.Join(args[2:], " ")
		case args[0] == "stream" && len(args) >= 2:
			topic = bus.T("hal", "cap", "audio", audio.StreamControl, "control", args[1])
			payload = strings.Join(args[2:], " ")
		default:
			fmt.Fprintln(os.Stderr, "usage: get <control> | set <control> <json> | stream <verb> [json]")
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		reply, err := conn.RequestWait(rctx, conn.NewMessage(topic, payload, false))
		cancel()
		if err != nil {
			log.WithError(err).Warn("request failed")
			continue
		}
		fmt.Printf("%+v\n", reply.Payload)
	}
}

func topicString(t bus.Topic) string {
	parts := make([]string, t.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(t.At(i))
	}
	return strings.Join(parts, "/")
}
