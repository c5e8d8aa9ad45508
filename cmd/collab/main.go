package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/consultly/collab/client"
	"github.com/consultly/collab/internal/auth"
	"github.com/consultly/collab/internal/logging"
	"github.com/consultly/collab/internal/models"
	"github.com/consultly/collab/internal/protocol"
	"github.com/google/uuid"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/ws", "channel endpoint")
		token    = flag.String("token", "", "session token (minted locally when empty)")
		secret   = flag.String("secret", "dev-secret", "JWT secret for local token minting")
		room     = flag.String("room", "", "room to join after connecting")
		userID   = flag.String("user", "", "user id (random when empty)")
		userName = flag.String("name", "anonymous", "display name")
		logLevel = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logging.New(logging.ParseLevel(*logLevel))

	if *userID == "" {
		*userID = uuid.NewString()
	}
	if *token == "" {
		minted, err := auth.NewAuthenticator(*secret).MintToken(&models.User{
			ID:   *userID,
			Name: *userName,
		}, 24*time.Hour)
		if err != nil {
			logger.Error("Failed to mint token", slog.Any("error", err))
			os.Exit(1)
		}
		*token = minted
	}

	c, err := client.New(client.Options{
		URL:      *url,
		Token:    *token,
		UserID:   *userID,
		UserName: *userName,
		Logger:   logger,
		Reconnect: client.ReconnectPolicy{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			Jitter:         0.2,
			MaxAttempts:    10,
		},
		OnDisconnect: func(err error) {
			fmt.Fprintf(os.Stderr, "* connection lost: %v\n", err)
		},
		OnReconnect: func(roomID string) {
			fmt.Fprintf(os.Stderr, "* reconnected (room %q)\n", roomID)
		},
	})
	if err != nil {
		logger.Error("Failed to create client", slog.Any("error", err))
		os.Exit(1)
	}

	tracker := c.NewPresenceTracker()

	c.On(protocol.TypeNewMessage, func(p protocol.Payload) {
		msg := p.(*protocol.NewMessage)
		fmt.Printf("[%s] %s: %s\n",
			msg.Message.CreatedAt.Format("15:04"), msg.Message.SenderName, msg.Message.Content)
	})
	c.On(protocol.TypeUserJoined, func(p protocol.Payload) {
		joined := p.(*protocol.UserJoined)
		fmt.Printf("* %s joined\n", joined.UserName)
	})
	c.On(protocol.TypeUserLeft, func(p protocol.Payload) {
		left := p.(*protocol.UserLeft)
		fmt.Printf("* %s left\n", left.UserName)
	})
	c.On(protocol.TypeTypingStart, func(p protocol.Payload) {
		typing := p.(*protocol.TypingStart)
		fmt.Printf("* %s is typing...\n", typing.UserName)
	})
	c.On(protocol.TypeNotification, func(p protocol.Payload) {
		n := p.(*protocol.NotificationEvent)
		fmt.Printf("* notification: %s: %s\n", n.Notification.Title, n.Notification.Content)
	})
	c.On(protocol.TypeError, func(p protocol.Payload) {
		e := p.(*protocol.ErrorPayload)
		fmt.Fprintf(os.Stderr, "* server error %s: %s\n", e.Code, e.Message)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Connect(ctx); err != nil {
		logger.Error("Failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Disconnect()
	fmt.Printf("connected as %s (%s)\n", *userName, *userID)

	if *room != "" {
		joinCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := c.JoinRoom(joinCtx, *room)
		cancel()
		if err != nil {
			logger.Error("Failed to join room", slog.String("room", *room), slog.Any("error", err))
			os.Exit(1)
		}
		if snapshot, err := c.FetchPresence(ctx, *room); err == nil {
			tracker.Load(snapshot)
		}
		fmt.Printf("joined room %s\n", *room)
		for _, entry := range tracker.Online() {
			fmt.Printf("  online: %s (%s)\n", entry.UserName, entry.Status)
		}
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if err := c.SendMessage(line, models.MessageTypeText, ""); err != nil {
				fmt.Fprintf(os.Stderr, "* send failed: %v\n", err)
			}
		}
	}
}
