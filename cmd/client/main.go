package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-client/internal/auth"
	"chat-client/internal/config"
	"chat-client/internal/rest"
	"chat-client/internal/session"
	"chat-client/internal/transport"
	"chat-client/internal/types"
)

func main() {
	cfg := config.Load()

	store := auth.NewStore()
	api := rest.NewClient(cfg.APIURL, store.Token)

	reader := bufio.NewReader(os.Stdin)
	user, err := login(reader, api, store)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	sess := session.New(cfg, user, api, &transport.WebsocketDialer{URL: cfg.BrokerURL})
	sess.OnEvent(render(user))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go inputLoop(reader, sess, stop)

	<-stop

	fmt.Println("\nLeaving chat...")
	sess.Close()
	api.Logout(context.Background())
	store.Clear()
	fmt.Println("Goodbye! 👋")
}

func login(reader *bufio.Reader, api *rest.Client, store *auth.Store) (*auth.User, error) {
	fmt.Print("Username: ")
	username, _ := reader.ReadString('\n')
	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')

	resp, err := api.Login(context.Background(),
		strings.TrimSpace(username), strings.TrimSpace(password))
	if err != nil {
		return nil, err
	}
	return store.SetSession(resp.User.Username, resp.Token), nil
}

// render prints session events to the terminal. This is the whole of the
// "UI layer": everything stateful lives in the session.
func render(user *auth.User) func(session.Event) {
	return func(e session.Event) {
		switch e.Kind {
		case session.EventConnected:
			fmt.Println("*** connected to chat ***")
		case session.EventDisconnected:
			fmt.Println("*** connection lost, reconnecting ***")
		case session.EventGroupMessage:
			printGroupMessage(user.Username, e.Message)
		case session.EventPrivateMessage:
			if e.Message != nil && e.Message.Sender != user.Username {
				fmt.Printf("[pm] %s: %s\n", e.Message.Sender, e.Message.Content)
			}
		case session.EventUnread:
			fmt.Printf("*** new private message from %s (use /open %s) ***\n", e.Peer, e.Peer)
		case session.EventTyping:
			fmt.Printf("... %s is typing\n", e.Peer)
		}
	}
}

func printGroupMessage(localUser string, m *types.Message) {
	if m == nil {
		return
	}
	switch m.Type {
	case types.TypeJoin:
		fmt.Printf("*** %s joined the group ***\n", m.Sender)
	case types.TypeLeave:
		fmt.Printf("*** %s left the group ***\n", m.Sender)
	case types.TypeSystem:
		fmt.Printf("*** %s ***\n", m.Content)
	case types.TypeChat:
		name := m.Sender
		if name == localUser {
			name = "you"
		}
		fmt.Printf("%s: %s\n", name, m.Content)
	}
}

func inputLoop(reader *bufio.Reader, sess *session.Session, stop chan<- os.Signal) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			stop <- syscall.SIGTERM
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			sess.NotifyTyping()
			if err := sess.SendGroupMessage(line); err != nil {
				fmt.Printf("!! send failed: %v\n", err)
			}
			continue
		}

		parts := strings.SplitN(line, " ", 3)
		switch parts[0] {
		case "/quit":
			stop <- syscall.SIGTERM
			return

		case "/users":
			fmt.Printf("Online: %s\n", strings.Join(sess.Presence(), ", "))
			for peer, n := range sess.Unread() {
				fmt.Printf("  %s (%d unread)\n", peer, n)
			}

		case "/open":
			if len(parts) < 2 {
				fmt.Println("Usage: /open <user>")
				continue
			}
			conv, err := sess.OpenPrivateConversation(parts[1])
			if err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			for _, m := range conv.Transcript() {
				fmt.Printf("[pm] %s: %s\n", m.Sender, m.Content)
			}

		case "/close":
			if len(parts) < 2 {
				fmt.Println("Usage: /close <user>")
				continue
			}
			sess.ClosePrivateConversation(parts[1])

		case "/msg":
			if len(parts) < 3 {
				fmt.Println("Usage: /msg <user> <text>")
				continue
			}
			if _, err := sess.OpenPrivateConversation(parts[1]); err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			if err := sess.SendPrivateMessage(parts[1], parts[2]); err != nil {
				fmt.Printf("!! send failed: %v\n", err)
			}

		default:
			fmt.Println("Commands: /users, /open <user>, /close <user>, /msg <user> <text>, /quit")
		}
	}
}
