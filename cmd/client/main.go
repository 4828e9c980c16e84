package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gogogo1024/filegate"
	"github.com/gogogo1024/filegate/protocol"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "filegate-client:", err)
		os.Exit(1)
	}
}

type clientConfig struct {
	addr       string
	cmd        protocol.Command
	file       string
	out        string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
}

func run(args []string, stdout io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	c, err := filegate.Dial(ctx, cfg.addr, filegate.WithDialRetry(cfg.retries, cfg.retryDelay))
	if err != nil {
		return err
	}
	defer c.Close()

	switch cfg.cmd {
	case protocol.CmdRequestMetadata:
		resp, err := c.RequestMetadata(ctx, cfg.file)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %s\n", cfg.file, resp.Text())
		return nil
	default:
		resp, err := c.RequestContents(ctx, cfg.file)
		if err != nil {
			return err
		}
		return writeContents(cfg, resp, stdout)
	}
}

func parseFlags(args []string) (clientConfig, error) {
	fs := flag.NewFlagSet("filegate-client", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:9002", "server address")
	cmdName := fs.String("cmd", "metadata", "request: metadata (0) or contents (1)")
	file := fs.String("file", "", "file name on the server")
	out := fs.String("out", "", "write contents to this path ('-' for stdout)")
	timeout := fs.Duration("timeout", 30*time.Second, "overall request timeout")
	retries := fs.Int("retries", 3, "connection attempts while the server refuses")
	retryDelay := fs.Duration("retry-delay", time.Second, "delay between connection attempts")
	if err := fs.Parse(args); err != nil {
		return clientConfig{}, err
	}

	cmd, err := parseCommand(*cmdName)
	if err != nil {
		return clientConfig{}, err
	}
	name := *file
	if name == "" && fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	if name == "" {
		return clientConfig{}, fmt.Errorf("missing -file")
	}

	return clientConfig{
		addr:       *addr,
		cmd:        cmd,
		file:       name,
		out:        *out,
		timeout:    *timeout,
		retries:    *retries,
		retryDelay: *retryDelay,
	}, nil
}

func parseCommand(s string) (protocol.Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "metadata", "meta", "stat":
		return protocol.CmdRequestMetadata, nil
	case "1", "contents", "content", "get", "file":
		return protocol.CmdRequestFile, nil
	}
	return 0, fmt.Errorf("unknown command %q (want metadata or contents)", s)
}

func writeContents(cfg clientConfig, resp *protocol.Response, stdout io.Writer) error {
	switch cfg.out {
	case "":
		fmt.Fprintf(stdout, "%s: received %d bytes in %d chunks\n",
			cfg.file, len(resp.Payload), resp.Header.ChunkIndex+1)
		return nil
	case "-":
		_, err := stdout.Write(resp.Payload)
		return err
	}
	if err := os.WriteFile(cfg.out, resp.Payload, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: wrote %d bytes to %s\n", cfg.file, len(resp.Payload), cfg.out)
	return nil
}
