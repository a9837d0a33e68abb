package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/peterh/liner"
)

// nodeAPI is a thin wrapper over a node's client-facing HTTP surface.
type nodeAPI struct {
	addr string
	http *http.Client
}

var errNotFound = errors.New("key not found")

func (a *nodeAPI) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, "http://"+a.addr+path, body)
	if err != nil {
		return 0, nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func (a *nodeAPI) put(ctx context.Context, key, value string) (time.Duration, error) {
	start := time.Now()
	status, body, err := a.do(ctx, http.MethodPut, "/storage/"+url.PathEscape(key), strings.NewReader(value))
	if err != nil {
		return time.Since(start), err
	}
	if status != http.StatusOK {
		return time.Since(start), fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return time.Since(start), nil
}

func (a *nodeAPI) get(ctx context.Context, key string) (string, time.Duration, error) {
	start := time.Now()
	status, body, err := a.do(ctx, http.MethodGet, "/storage/"+url.PathEscape(key), nil)
	if err != nil {
		return "", time.Since(start), err
	}
	switch status {
	case http.StatusOK:
		return string(body), time.Since(start), nil
	case http.StatusNotFound:
		return "", time.Since(start), errNotFound
	default:
		return "", time.Since(start), fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
}

func (a *nodeAPI) del(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()
	status, body, err := a.do(ctx, http.MethodDelete, "/storage/"+url.PathEscape(key), nil)
	if err != nil {
		return time.Since(start), err
	}
	switch status {
	case http.StatusOK:
		return time.Since(start), nil
	case http.StatusNotFound:
		return time.Since(start), errNotFound
	default:
		return time.Since(start), fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
}

func (a *nodeAPI) post(ctx context.Context, path string) error {
	status, body, err := a.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (a *nodeAPI) getJSON(ctx context.Context, path string, out any) error {
	status, body, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

type wireNode struct {
	Address  string `json:"address"`
	NodeHash string `json:"node_hash"`
}

type wireNodeInfo struct {
	Address       string     `json:"address"`
	NodeHash      string     `json:"node_hash"`
	Successor     *wireNode  `json:"successor"`
	Predecessor   *wireNode  `json:"predecessor"`
	FingerTable   []wireNode `json:"finger_table"`
	SuccessorList []wireNode `json:"successor_list"`
}

func main() {
	// CLI flags
	addr := flag.String("addr", "127.0.0.1:7000", "Address of the Chord node (entry point)")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout (e.g., 5s)")
	flag.Parse()

	api := &nodeAPI{addr: *addr, http: &http.Client{}}
	fmt.Printf("Chord interactive client. Connected to %s\n", api.addr)
	fmt.Println("Available commands: put/get/delete/join/leave/crash/recover/fingertable/info/use/exit")

	// Setup liner shell
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("chord[%s]> ", api.addr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {

		case "put":
			if len(args) < 3 {
				fmt.Println("Usage: put <key> <value>")
				cancel()
				continue
			}
			key, value := args[1], strings.Join(args[2:], " ")
			delay, err := api.put(ctx, key, value)
			if err != nil {
				fmt.Printf("Put failed (%v) | latency=%s\n", err, delay)
			} else {
				fmt.Printf("Put succeeded (key=%s, value=%s) | latency=%s\n", key, value, delay)
			}

		case "get":
			if len(args) < 2 {
				fmt.Println("Usage: get <key>")
				cancel()
				continue
			}
			key := args[1]
			val, delay, err := api.get(ctx, key)
			switch {
			case err == nil:
				fmt.Printf("Get succeeded (key=%s, value=%s) | latency=%s\n", key, val, delay)
			case errors.Is(err, errNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Get failed: %v | latency=%s\n", err, delay)
			}

		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <key>")
				cancel()
				continue
			}
			key := args[1]
			delay, err := api.del(ctx, key)
			switch {
			case err == nil:
				fmt.Printf("Delete succeeded (key=%s) | latency=%s\n", key, delay)
			case errors.Is(err, errNotFound):
				fmt.Printf("Key not found: %s | latency=%s\n", key, delay)
			default:
				fmt.Printf("Delete failed: %v | latency=%s\n", err, delay)
			}

		case "join":
			if len(args) < 2 {
				fmt.Println("Usage: join <nprime-addr>")
				cancel()
				continue
			}
			if err := api.post(ctx, "/join?nprime="+url.QueryEscape(args[1])); err != nil {
				fmt.Printf("Join failed: %v\n", err)
			} else {
				fmt.Printf("Joined ring via %s\n", args[1])
			}

		case "leave":
			if err := api.post(ctx, "/leave"); err != nil {
				fmt.Printf("Leave failed: %v\n", err)
			} else {
				fmt.Println("Node left the ring")
			}

		case "crash":
			if err := api.post(ctx, "/sim-crash"); err != nil {
				fmt.Printf("Crash failed: %v\n", err)
			} else {
				fmt.Println("Node crashed (simulated)")
			}

		case "recover":
			if err := api.post(ctx, "/sim-recover"); err != nil {
				fmt.Printf("Recover failed: %v\n", err)
			} else {
				fmt.Println("Node recovered")
			}

		case "fingertable":
			var ft struct {
				FingerTable []wireNode `json:"fingertable"`
			}
			if err := api.getJSON(ctx, "/fingertable", &ft); err != nil {
				fmt.Printf("Fingertable failed: %v\n", err)
				cancel()
				continue
			}
			fmt.Printf("Finger table (%d distinct entries):\n", len(ft.FingerTable))
			for i, f := range ft.FingerTable {
				fmt.Printf("  [%d] %s (%s)\n", i, f.NodeHash, f.Address)
			}

		case "info":
			var info wireNodeInfo
			if err := api.getJSON(ctx, "/node-info", &info); err != nil {
				fmt.Printf("Info failed: %v\n", err)
				cancel()
				continue
			}
			fmt.Printf("Self: %s (%s)\n", info.NodeHash, info.Address)
			if info.Predecessor != nil {
				fmt.Printf("Predecessor: %s (%s)\n", info.Predecessor.NodeHash, info.Predecessor.Address)
			} else {
				fmt.Println("Predecessor: <none>")
			}
			if info.Successor != nil {
				fmt.Printf("Successor: %s (%s)\n", info.Successor.NodeHash, info.Successor.Address)
			}
			fmt.Println("Successor list:")
			for i, s := range info.SuccessorList {
				fmt.Printf("  [%d] %s (%s)\n", i, s.NodeHash, s.Address)
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				cancel()
				continue
			}
			api.addr = args[1]
			fmt.Printf("Switched connection to %s\n", api.addr)

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		cancel()
	}
}
