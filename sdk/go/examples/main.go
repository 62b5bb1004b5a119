package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"ChainCounter/sdk/go/counter"
)

func main() {
	var (
		mu    sync.Mutex
		value int64
		rev   uint64
		conn  = "disconnected"
	)
	reply := func(w http.ResponseWriter, mutate func()) {
		mu.Lock()
		if mutate != nil {
			mutate()
			rev++
		}
		v := strconv.FormatInt(value, 10)
		st := counter.State{Connection: conn, Counter: &v, Revision: rev}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"state": st})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/connect", func(w http.ResponseWriter, r *http.Request) {
		reply(w, func() { conn, value = "connected", 5 })
	})
	mux.HandleFunc("POST /api/v1/counter/increment", func(w http.ResponseWriter, r *http.Request) {
		reply(w, func() { value++ })
	})
	mux.HandleFunc("POST /api/v1/counter/reset", func(w http.ResponseWriter, r *http.Request) {
		reply(w, func() { value = 0 })
	})
	mux.HandleFunc("GET /api/v1/state", func(w http.ResponseWriter, r *http.Request) {
		reply(w, nil)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := counter.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := client.Connect(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("connected, counter=%s\n", *st.Counter)

	st, err = client.Increment(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("incremented, counter=%s (revision %d)\n", *st.Counter, st.Revision)

	st, err = client.Reset(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("reset, counter=%s\n", *st.Counter)
}
