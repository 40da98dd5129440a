// Copyright 2024 The Xows Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Command xowsc is a small terminal client exercising the session engine:
// it connects to an XMPP-over-WebSocket endpoint, prints events as they
// arrive, and sends lines read from standard input as chat messages.
//
// The account password is taken from the XOWSC_PASSWORD environment
// variable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	xows "github.com/iquercorb/xows-sub001"
	"github.com/iquercorb/xows-sub001/internal/logger"
	"github.com/iquercorb/xows-sub001/jid"
	"github.com/iquercorb/xows-sub001/stanza"
	"github.com/iquercorb/xows-sub001/websocket"
)

func main() {
	url := flag.String("url", "wss://localhost:5281/xmpp-websocket", "WebSocket endpoint URL")
	account := flag.String("jid", "", "account address (user@domain)")
	resource := flag.String("resource", "", "resource to bind (empty lets the server pick)")
	peer := flag.String("to", "", "peer address to chat with")
	register := flag.Bool("register", false, "create the account in-band before logging in")
	debug := flag.Bool("debug", false, "enable debug logging")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := logger.New(os.Stderr, logger.Options{Level: level, NoColor: *noColor})

	origin, err := jid.Parse(*account)
	if err != nil {
		log.Error("invalid account address", "err", err)
		os.Exit(2)
	}
	password := os.Getenv("XOWSC_PASSWORD")
	if password == "" {
		log.Error("XOWSC_PASSWORD is not set")
		os.Exit(2)
	}
	var to jid.JID
	if *peer != "" {
		if to, err = jid.Parse(*peer); err != nil {
			log.Error("invalid peer address", "err", err)
			os.Exit(2)
		}
	}

	var s *xows.Session
	s = xows.NewSession(xows.Config{
		Origin:   origin,
		Password: password,
		Resource: *resource,
		Register: *register,
		SaveAuth: true,
		Name:     "xowsc",
		Logger:   log,
	}, xows.Handlers{
		SessionReady: func(bind xows.BindResult, resumed bool) {
			log.Info("session ready", "jid", bind.Full.String(), "resumed", resumed)
			if resumed {
				return
			}
			s.SendAvailable("", "", 0)
			s.FetchRoster(func(items []xows.RosterItem, ver string, err *stanza.Error) {
				if err != nil {
					log.Warn("roster fetch failed", "err", err.Error())
					return
				}
				for _, item := range items {
					fmt.Printf("* %s (%s)\n", item.JID.String(), item.Subscription)
				}
			})
		},
		SessionClosed: func(code xows.FailCode, text string) {
			log.Warn("session closed", "code", code.String(), "text", text)
		},
		Message: func(m xows.Message) {
			fmt.Printf("<%s> %s\n", m.From.String(), m.Body)
			if m.ReceiptReq {
				s.SendReceipt(m.From, m.ID)
			}
		},
		ChatState: func(ev xows.ChatStateEvent) {
			log.Debug("chat state", "from", ev.From.String(), "state", int(ev.State))
		},
		Receipt: func(ev xows.ReceiptEvent) {
			log.Debug("delivered", "to", ev.From.String(), "id", ev.ID)
		},
		Presence: func(ev xows.PresenceEvent) {
			log.Info("presence", "from", ev.From.String(),
				"type", string(ev.Type), "show", ev.Show)
		},
		Subscribe: func(from jid.JID, nick string) {
			log.Info("subscription request", "from", from.String(), "nick", nick)
		},
		StanzaError: func(from jid.JID, e stanza.Error) {
			log.Warn("stanza error", "from", from.String(), "err", e.Error())
		},
	})

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if to.IsZero() {
				log.Warn("no peer configured, use -to")
				continue
			}
			s.SendChat(to, line)
		}
		s.Disconnect()
	}()

	d := &websocket.Dialer{}
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		conn, err := d.Dial(ctx, *url)
		cancel()
		if err != nil {
			log.Error("dial failed", "url", *url, "err", err)
			os.Exit(1)
		}
		if err := conn.Serve(s); err != nil {
			log.Debug("connection ended", "err", err)
		}
		if !s.CanResume() {
			return
		}
		log.Info("reconnecting to resume the stream")
		time.Sleep(2 * time.Second)
	}
}
