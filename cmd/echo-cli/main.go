// echo-cli is a terminal client for the Echo chat server.
//
// It signs in (or registers with --register), keeps a socket open for live pushes, and
// reads commands from standard input:
//
//	/peers          list the other users and whether they are online
//	/open <name>    open the conversation with a user (by username or id)
//	/quit           leave
//	anything else   send it to the open conversation
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"echochat/internal/app/chat"
	"echochat/internal/app/conversation"
	"echochat/internal/app/user"
	"echochat/internal/client"
	"echochat/internal/pkg/logx"
)

// directory maps user ids to usernames for display. Pushes read it from the socket goroutine.
type directory struct {
	mu    sync.Mutex
	names map[string]string
}

func (d *directory) set(id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[id] = name
}

func (d *directory) get(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.ValueOr(d.names, id, id)
}

type options struct {
	server   string
	email    string
	password string
	username string
	register bool
	peer     string
	verbose  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("echo-cli", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.server, "server", "s", "http://localhost:8080", "server base URL")
	flagSet.StringVarP(&opts.email, "email", "e", "", "account email")
	flagSet.StringVarP(&opts.password, "password", "p", "", "account password (default: $ECHO_PASSWORD)")
	flagSet.StringVarP(&opts.username, "username", "u", "", "username, required with --register")
	flagSet.BoolVar(&opts.register, "register", false, "create the account before signing in")
	flagSet.StringVar(&opts.peer, "peer", "", "open the conversation with this user on start")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.password == "" {
		opts.password = os.Getenv("ECHO_PASSWORD")
	}
	if opts.email == "" || opts.password == "" {
		return errors.New("--email and --password are required")
	}
	if opts.register && opts.username == "" {
		return errors.New("--username is required with --register")
	}

	logx.InitGlobalLogger(true)
	if !opts.verbose {
		logx.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return session(ctx, opts, os.Stdin, os.Stdout)
}

func session(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	api := client.New(opts.server)

	var err error
	if opts.register {
		_, err = api.Register(ctx, opts.username, opts.email, opts.password)
	} else {
		_, err = api.Login(ctx, opts.email, opts.password)
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	self := api.Self()

	sock, err := client.Dial(ctx, opts.server, api.Token())
	if err != nil {
		return err
	}
	defer sock.Close()

	if err := sock.Join(self.ID); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	sock.OnError(func(p chat.ErrorPayload) {
		fmt.Fprintf(out, "! server: %s (%d)\n", p.Message, p.Code)
	})

	names := &directory{names: map[string]string{self.ID: self.Username}}
	state := conversation.New(self.ID, api,
		conversation.WithPeerFilter(),
		conversation.WithNotify(func(e conversation.Entry) {
			if e.Kind == conversation.KindPushed {
				printEntry(out, names, e)
			}
		}),
	)
	detach := state.Attach(sock)
	defer detach()

	fmt.Fprintf(out, "Signed in as %s. /peers, /open <name>, /quit\n", self.Username)

	if opts.peer != "" {
		if err := openConversation(ctx, state, names, opts.peer, out); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sock.Done():
			return errors.New("connection to server lost")

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			switch {
			case line == "/quit":
				return nil

			case line == "/peers":
				if err := listPeers(ctx, api, names, out); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}

			case strings.HasPrefix(line, "/open "):
				if err := openConversation(ctx, state, names, strings.TrimSpace(strings.TrimPrefix(line, "/open ")), out); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}

			default:
				sent, err := state.Send(ctx, line)
				if err != nil {
					fmt.Fprintf(out, "! %v\n", err)
					continue
				}
				printEntry(out, names, conversation.Entry{Kind: conversation.KindPersisted, Message: sent})
			}
		}
	}
}

// listPeers always asks the server, so presence is current.
func listPeers(ctx context.Context, api *client.Client, names *directory, out io.Writer) error {
	peers, err := api.ListPeers(ctx)
	if err != nil {
		return err
	}
	for _, p := range peers {
		names.set(p.ID, p.Username)
		status := "offline"
		if p.Online {
			status = "online"
		}
		fmt.Fprintf(out, "  %-20s %s\n", p.Username, status)
	}
	return nil
}

func openConversation(ctx context.Context, state *conversation.State, names *directory, who string, out io.Writer) error {
	peers, err := state.ListPeers(ctx)
	if err != nil {
		return err
	}
	for _, p := range peers {
		names.set(p.ID, p.Username)
	}

	peer, ok := lo.Find(peers, func(p user.Peer) bool {
		return p.Username == who || p.ID == who
	})
	if !ok {
		return fmt.Errorf("no user %q", who)
	}

	if err := state.SelectPeer(ctx, peer.User); err != nil {
		return err
	}

	fmt.Fprintf(out, "--- %s ---\n", peer.Username)
	for _, e := range state.View() {
		printEntry(out, names, e)
	}
	return nil
}

func printEntry(out io.Writer, names *directory, e conversation.Entry) {
	from := names.get(e.Message.SenderID)
	fmt.Fprintf(out, "[%s] %s: %s\n", e.Message.CreatedAt.Local().Format(time.Kitchen), from, e.Message.Content)
}
