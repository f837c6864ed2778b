// Command pconn-client dials a pconn-server, sends one message on id 2,
// and prints the echoed reply received on id 3.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/sagernet/pconn"
)

// Config mirrors the demo client's command-line flags.
type Config struct {
	Remote      string `yaml:"remote"`
	Message     string `yaml:"message"`
	PingTimeout int    `yaml:"ping_timeout_sec"`
	PingDelay   int    `yaml:"ping_delay_sec"`
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
	app.Name = "pconn-client"
	app.Usage = "connects to a pconn-server and round-trips one message"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "remote, r", Value: "127.0.0.1:9000", Usage: "server address to dial"},
		cli.StringFlag{Name: "message, m", Value: "hello", Usage: "message to send on id 2"},
		cli.IntFlag{Name: "ping-timeout", Value: 10, Usage: "seconds to wait for a ping response before declaring the server dead"},
		cli.IntFlag{Name: "ping-delay", Value: 5, Usage: "seconds between successful pings"},
		cli.StringFlag{Name: "c", Value: "", Usage: "YAML config file, overrides the flags above when set"},
	}
	app.Action = func(c *cli.Context) error {
		cfg := Config{
			Remote:      c.String("remote"),
			Message:     c.String("message"),
			PingTimeout: c.Int("ping-timeout"),
			PingDelay:   c.Int("ping-delay"),
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

	connector := pconn.NewConnector(opts)

	reply := make(chan string, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := connector.Connect(ctx, "tcp", cfg.Remote, nil)
	checkError(errors.Wrap(err, "connecting"))
	defer session.Close()

	color.Green("connected to %s", session.RemoteAddr())

	// Installed on the session returned synchronously by Connect, so the
	// handler is in place before the request below can possibly be
	// answered.
	session.OnFailedRead = func(err error) { color.Red("session failed: %v", err) }
	session.OnPingTimeout = func(err error) { color.Red("server stopped responding to pings: %v", err) }
	session.SetHandler(3, func(p *pconn.Payload, s *pconn.Session) {
		msg, _ := p.PopString()
		reply <- msg
	}, true)

	req := pconn.NewPayload()
	req.PushString(cfg.Message)
	req.PushMessageID(2)
	checkError(session.Send(req))

	select {
	case msg := <-reply:
		fmt.Println("echoed back:", msg)
	case <-time.After(5 * time.Second):
		log.Fatal("timed out waiting for echo")
	}
}
