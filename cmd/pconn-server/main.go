// Command pconn-server runs a demo pconn acceptor that echoes back every
// string it receives on message id 2, replying on message id 3.
package main

import (
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/sagernet/pconn"
)

// Config mirrors the demo server's command-line flags so a deployment can
// pin them in a file instead of a shell invocation.
type Config struct {
	Listen       string `yaml:"listen"`
	PingTimeout  int    `yaml:"ping_timeout_sec"`
	PingDelay    int    `yaml:"ping_delay_sec"`
	MaxFrameSize int    `yaml:"max_frame_size"`
	Quiet        bool   `yaml:"quiet"`
}

func loadYAMLConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening config file")
	}
	defer f.Close()
	return errors.Wrap(yaml.NewDecoder(f).Decode(cfg), "decoding config file")
}

func checkError(err error) {
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "pconn-server"
	app.Usage = "echo server demonstrating the pconn session engine"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen, l", Value: ":9000", Usage: "listen address, eg. \":9000\""},
		cli.IntFlag{Name: "ping-timeout", Value: 10, Usage: "seconds to wait for a ping response before declaring a peer dead"},
		cli.IntFlag{Name: "ping-delay", Value: 5, Usage: "seconds between successful pings"},
		cli.IntFlag{Name: "max-frame-size", Value: pconn.DefaultMaxFrameSize, Usage: "cap, in bytes, on a single inbound frame body"},
		cli.BoolFlag{Name: "quiet", Usage: "suppress connect/disconnect logging"},
		cli.StringFlag{Name: "c", Value: "", Usage: "YAML config file, overrides the flags above when set"},
	}
	app.Action = func(c *cli.Context) error {
		cfg := Config{
			Listen:       c.String("listen"),
			PingTimeout:  c.Int("ping-timeout"),
			PingDelay:    c.Int("ping-delay"),
			MaxFrameSize: c.Int("max-frame-size"),
			Quiet:        c.Bool("quiet"),
		}
		if path := c.String("c"); path != "" {
			checkError(loadYAMLConfig(path, &cfg))
		}
		run(cfg)
		return nil
	}

	checkError(app.Run(os.Args))
}

func run(cfg Config) {
	opts := pconn.DefaultOptions()
	opts.PingTimeout = time.Duration(cfg.PingTimeout) * time.Second
	opts.PingDelay = time.Duration(cfg.PingDelay) * time.Second
	if cfg.MaxFrameSize > 0 {
		opts.MaxFrameSize = uint64(cfg.MaxFrameSize)
	}

	acceptor := pconn.NewAcceptor(opts)
	checkError(errors.Wrap(acceptor.Bind("tcp", cfg.Listen), "binding listener"))

	color.Green("pconn-server listening on %s", acceptor.Addr())

	logln := func(v ...any) {
		if !cfg.Quiet {
			log.Println(v...)
		}
	}

	onConnected := func(s *pconn.Session) {
		logln("client connected:", s.RemoteAddr())
		s.OnFailedRead = func(err error) { logln("client failed:", s.RemoteAddr(), err) }
		s.OnPingTimeout = func(err error) { logln("client timed out:", s.RemoteAddr(), err) }

		s.SetHandler(2, func(p *pconn.Payload, s *pconn.Session) {
			msg, err := p.PopString()
			if err != nil {
				logln("malformed request from", s.RemoteAddr(), err)
				return
			}
			resp := pconn.NewPayload()
			resp.PushString(msg)
			resp.PushMessageID(3)
			if err := s.Send(resp); err != nil {
				logln("send failed:", s.RemoteAddr(), err)
			}
		}, true)
	}

	onForbidden := func(s *pconn.Session) {
		color.Yellow("rejecting connection after stop: %s", s.RemoteAddr())
	}

	checkError(errors.Wrap(acceptor.StartAccept(onConnected, onForbidden), "accept loop"))
}
