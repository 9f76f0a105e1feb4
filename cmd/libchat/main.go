package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"libchat/internal/api"
	"libchat/internal/chat"
	"libchat/internal/config"
	"libchat/internal/token"
)

func main() {
	var (
		email    = flag.String("email", "", "email to log in with")
		password = flag.String("password", "", "password to log in with")
		register = flag.Bool("register", false, "register a new account instead of logging in")
	)
	flag.Parse()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	store := token.NewFileStore(cfg.TokenFile)
	refresher := token.NewRefresher(cfg.APIBaseURL, nil, store)
	client := api.New(cfg.APIBaseURL, nil, store, refresher)

	ctx := context.Background()

	if *email != "" {
		var err error
		if *register {
			_, err = client.Register(ctx, *email, *password)
		} else {
			_, err = client.Login(ctx, *email, *password)
		}
		if err != nil {
			log.Fatalf("authentication failed: %v", err)
		}
		fmt.Println("logged in")
	}

	var (
		mu      sync.Mutex
		printed int
		sess    *chat.Session
	)
	render := func() {
		mu.Lock()
		defer mu.Unlock()
		viewer := sess.Viewer()
		entries := sess.Entries()
		if len(entries) < printed {
			printed = 0
		}
		for _, e := range entries[printed:] {
			name := chat.DisplayName(e)
			if chat.Mine(viewer, e) {
				name = "You"
			}
			fmt.Printf("[%s] %s: %s\n", e.CreatedAt.Format("15:04"), name, e.Text)
		}
		printed = len(entries)
	}

	sess = chat.New(chat.Options{
		WSURL:     cfg.WSURL,
		Store:     store,
		Refresher: refresher,
		API:       client,
		OnUpdate:  func() { render() },
	})

	if err := sess.Connect(ctx); err != nil {
		if errors.Is(err, chat.ErrAuthRequired) {
			log.Fatal("no valid credentials; run again with -email and -password")
		}
		log.Fatalf("connect failed: %v", err)
	}
	defer sess.Close()

	render()
	fmt.Println("connected to support chat; type a message, or /quit to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			break
		}
		if line == "" {
			continue
		}
		if !sess.Connected() {
			fmt.Println("disconnected; restart to reconnect")
			break
		}
		if err := sess.Send(ctx, line); err != nil {
			log.Printf("send failed: %v", err)
		}
	}

	if sess.LoggedOut() {
		fmt.Println("session ended: the server rejected your credentials")
	}
}
