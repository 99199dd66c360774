package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/unkn0wn-root/entropyd/server"
)

func main() {
	var (
		host  = flag.String("s", "127.0.0.1", "server host or IP")
		port  = flag.Int("p", server.DefaultPort, "server port")
		count = flag.Uint("n", 20, "number of entropy bytes to request")
	)
	flag.Parse()

	cl, err := server.Dial(fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer cl.Close()

	payload, err := cl.Fetch(uint32(*count))
	switch {
	case errors.Is(err, server.ErrInsufficient):
		fmt.Println("entropy provider would block")
	case errors.Is(err, io.EOF):
		fmt.Println("graceful close")
	case err != nil:
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	default:
		fmt.Printf("received %d bytes:\n", len(payload)+1)
		for _, b := range payload {
			fmt.Printf("%x:", b)
		}
		fmt.Println()
	}
}
