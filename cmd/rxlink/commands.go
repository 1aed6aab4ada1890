package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/openfpv/radiolink"
	"github.com/openfpv/radiolink/integrationtests/tools/toylink"
	"github.com/openfpv/radiolink/internal/metrics"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/stats"
	"github.com/openfpv/radiolink/internal/utils"
	"github.com/openfpv/radiolink/internal/wire"
)

func newLink(c *cli.Context, conf *radiolink.Config, start time.Time, packetInterval time.Duration) (*toylink.Link, error) {
	id := protocol.StreamID(c.Int("stream"))
	stream, ok := conf.Stream(id)
	if !ok {
		return nil, errors.Errorf("stream %d is not configured", id)
	}
	interfaces := make([]toylink.InterfaceCondition, len(conf.Interfaces))
	for i := range interfaces {
		interfaces[i] = toylink.InterfaceCondition{
			Loss:         c.Float64("loss"),
			Duplicate:    c.Float64("duplicate"),
			Reorder:      c.Float64("reorder"),
			ReorderDepth: c.Int("reorder-depth"),
			BadCRC:       c.Float64("bad-crc"),
			Corrupt:      c.Float64("corrupt"),
			Dbm:          -40 - 10*i,
			DataRate:     6,
		}
	}
	return toylink.New(toylink.Config{
		Stream:         *stream,
		Interfaces:     interfaces,
		PacketInterval: packetInterval,
		Seed:           c.Int64("seed"),
		Start:          start,
	})
}

func newPayloads(n, size int, seed int64) [][]byte {
	r := rand.New(rand.NewSource(seed))
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = make([]byte, size)
		r.Read(payloads[i])
	}
	return payloads
}

func simulate(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	receiver, err := radiolink.NewReceiver(conf, nil)
	if err != nil {
		return err
	}
	defer receiver.Close()
	link, err := newLink(c, conf, time.Unix(0, 0), time.Millisecond)
	if err != nil {
		return err
	}

	res, err := toylink.Run(link, receiver, newPayloads(c.Int("payloads"), c.Int("size"), c.Int64("seed")))
	if err != nil {
		return errors.Wrap(err, "simulating")
	}
	snapshot := receiver.Snapshot()
	id := protocol.StreamID(c.Int("stream"))
	printSummary(c.App.Writer, res, receiver.ECBufferStats()[id], snapshot)

	if path := c.String("frames-out"); path != "" {
		var b bytes.Buffer
		if err := (&wire.StatsSnapshotFrame{Snapshot: snapshot}).Write(&b); err != nil {
			return err
		}
		if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
			return errors.Wrap(err, "writing frames")
		}
	}
	if res.Mismatched > 0 {
		return errors.Errorf("%d packets were output with wrong data", res.Mismatched)
	}
	return nil
}

func serve(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	logger := utils.DefaultLogger.WithPrefix("rxlink")
	receiver, err := radiolink.NewReceiver(conf, nil)
	if err != nil {
		return err
	}
	defer receiver.Close()

	rate := c.Int("rate")
	if rate <= 0 {
		return errors.New("rate must be positive")
	}
	link, err := newLink(c, conf, time.Now(), time.Second/time.Duration(rate))
	if err != nil {
		return err
	}
	id := protocol.StreamID(c.Int("stream"))

	var out io.Writer
	switch path := c.String("frames-out"); path {
	case "":
	case "-":
		out = c.App.Writer
	default:
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating frames file")
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	registry, err := metrics.NewRegistry(receiver)
	if err != nil {
		return err
	}
	listen := conf.Metrics.Listen
	if l := c.String("metrics-listen"); l != "" {
		listen = l
	}
	listen, path := metrics.EnvironmentOverride(listen, conf.Metrics.Path, logger)
	if !metrics.ValidateListenAddress(listen) {
		return errors.Errorf("invalid metrics listen address %q", listen)
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- metrics.Serve(ctx, listen, path, registry, logger)
	}()

	payloads := newPayloads(rate, c.Int("size"), c.Int64("seed"))
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	var b bytes.Buffer
	next := 0
	perTick := rate / 100
	if perTick < 1 {
		perTick = 1
	}
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Stopping: %+v", receiver.Counters())
			return <-errChan
		case err := <-errChan:
			return err
		case <-ticker.C:
		}
		for i := 0; i < perTick; i++ {
			if err := link.Send(payloads[next%len(payloads)]); err != nil {
				return err
			}
			next++
		}
		link.Deliver(func(p *radiolink.RxPacket) { receiver.HandlePacket(p) })
		b.Reset()
		for {
			f, ok := receiver.PopFrame(id, link.Now())
			if !ok {
				break
			}
			if out != nil {
				if err := f.Write(&b); err != nil {
					return err
				}
			}
		}
		if receiver.Tick(link.Now()) && out != nil {
			if err := (&wire.StatsSnapshotFrame{Snapshot: receiver.Snapshot()}).Write(&b); err != nil {
				return err
			}
		}
		if out != nil && b.Len() > 0 {
			if _, err := out.Write(b.Bytes()); err != nil {
				return errors.Wrap(err, "writing frames")
			}
		}
	}
}

func dumpConfig(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	body, err := conf.Marshal()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(body)
	return err
}

func dumpFrames(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected the path of a frames file")
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "reading frames")
	}
	r := bytes.NewReader(data)
	payloadFrames := 0
	for {
		frame, err := wire.ParseNextFrame(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch f := frame.(type) {
		case *wire.PayloadFrame:
			payloadFrames++
		case *wire.StatsSnapshotFrame:
			printSnapshot(c.App.Writer, f.Snapshot)
		}
	}
	fmt.Fprintf(c.App.Writer, "%d payload frames\n", payloadFrames)
	return nil
}

func printSnapshot(w io.Writer, s *stats.Snapshot) {
	fmt.Fprintf(w, "snapshot %d of session %s at %s\n", s.Sequence, s.SessionID, s.Time.Format(time.RFC3339Nano))
	printInterfaces(w, s)
}
