package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/straja-ai/mailsieve/internal/activation"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address for activation receiver")
	secretEnv := flag.String("secret-env", "", "env var holding the webhook signing secret; unsigned events are rejected when set")
	flag.Parse()

	h := &receiver{}
	if *secretEnv != "" {
		h.secret = os.Getenv(*secretEnv)
		if h.secret == "" {
			log.Fatalf("%s is empty", *secretEnv)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/activation", h)
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("activation receiver listening on %s (POST mailsieve decision events to /activation)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

type receiver struct {
	secret string
}

func (h *receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()

	if h.secret != "" && !activation.VerifySignature(h.secret, body, r.Header.Get("X-Mailsieve-Signature")) {
		log.Printf("rejected event: path=%s bad or missing signature", r.URL.Path)
		http.Error(w, `{"status":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var ev activation.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("received malformed event: path=%s len=%d err=%v", r.URL.Path, len(body), err)
		http.Error(w, `{"status":"bad_request"}`, http.StatusBadRequest)
		return
	}

	log.Printf("received event: kind=%s run_id=%s email=%s decision=%s scores=%v header=%s",
		ev.Kind, ev.RunID, ev.Email, ev.Decision, ev.Scores, r.Header.Get("X-Mailsieve-Event"))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
