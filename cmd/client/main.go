package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-house/contract"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:5500"`
	LogLevel      string `env:"LOG_LEVEL,default=warn"`
	Colours       bool   `env:"CHAT_COLOURS,default=true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the server, forwards stdin lines and prints incoming
// lines until the server sends the kill token or the connection drops.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := net.Dial("tcp", config.ServerAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()
	unwatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unwatch()

	// stdin -> server
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := fmt.Fprintf(conn, "%s\n", scanner.Text()); err != nil {
				return
			}
		}
	}()

	// server -> stdout
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == contract.KillToken {
			render(config.Colours, color.Red, "Server closed the connection")
			return exitOK, nil
		}
		switch {
		case strings.HasPrefix(line, "SERVER:"):
			render(config.Colours, color.Yellow, line)
		case strings.HasPrefix(line, "(private)"):
			render(config.Colours, color.Magenta, line)
		default:
			fmt.Println(line)
		}
	}
	if ctx.Err() != nil {
		return exitOK, nil
	}
	if err := scanner.Err(); err != nil {
		return exitRuntime, fmt.Errorf("connection lost: %w", err)
	}
	return exitOK, nil
}

func render(colours bool, c color.Color, line string) {
	if colours {
		c.Println(line)
		return
	}
	fmt.Println(line)
}
