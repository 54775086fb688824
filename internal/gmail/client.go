package gmail

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "client_secret.json"
	tokenFile       = "token.json"
)

// Prompt connects the OAuth consent flow to the user. ShowURL receives the
// consent URL; Pasted delivers an auth code or the full redirect URL when the
// loopback redirect cannot reach us. Pasted may be nil.
type Prompt struct {
	ShowURL func(authURL string)
	Pasted  <-chan string
}

// StdinPrompt prints the consent URL to stderr and reads a pasted code from
// stdin.
func StdinPrompt() Prompt {
	pasted := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 1024), 1024*1024)
		if sc.Scan() {
			pasted <- strings.TrimSpace(sc.Text())
		}
	}()
	return Prompt{
		ShowURL: func(authURL string) {
			fmt.Fprintln(os.Stderr, "Open this URL in your browser to authorize sendermap:")
			fmt.Fprintln(os.Stderr, authURL)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Waiting for the redirect. You can also paste the code or the full redirect URL here.")
			fmt.Fprint(os.Stderr, "> ")
		},
		Pasted: pasted,
	}
}

// NewService returns a read-only Gmail service for configDir's credentials.
// A cached token is reused when the API accepts it; otherwise the consent
// flow runs through prompt and the new token is cached.
func NewService(ctx context.Context, configDir string, prompt Prompt) (*gmailv1.Service, error) {
	credPath := filepath.Join(configDir, credentialsFile)
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	tokPath := filepath.Join(configDir, tokenFile)
	if tok, err := readToken(tokPath); err == nil {
		svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
		if err == nil {
			_, err = svc.Users.GetProfile("me").Context(ctx).Do()
		}
		if err == nil {
			return svc, nil
		}
		log.WithError(err).Info("cached_token_rejected")
		os.Remove(tokPath)
	}

	tok, err := tokenFromWeb(ctx, cfg, prompt)
	if err != nil {
		return nil, err
	}
	if err := saveToken(tokPath, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// HasToken reports whether a cached OAuth token exists in configDir.
func HasToken(configDir string) bool {
	_, err := os.Stat(filepath.Join(configDir, tokenFile))
	return err == nil
}

// SignOut forgets the cached OAuth token. A missing token is not an error.
func SignOut(configDir string) error {
	err := os.Remove(filepath.Join(configDir, tokenFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(tmp, path)
}

// tokenFromWeb runs a loopback HTTP server to capture the auth code, and
// accepts a pasted code or redirect URL from the prompt at the same time.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, prompt Prompt) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen on loopback: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

	state, err := randomState()
	if err != nil {
		ln.Close()
		return nil, err
	}

	codes := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer srv.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if prompt.ShowURL != nil {
		prompt.ShowURL(authURL)
	}
	if err := OpenBrowser(authURL); err != nil {
		log.WithError(err).Debug("open_browser_failed")
	}

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case code = <-codes:
	case input := <-prompt.Pasted:
		code, err = parseCode(input, state)
		if err != nil {
			return nil, err
		}
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	log.Info("oauth_authorized")
	return tok, nil
}

// parseCode accepts either a bare auth code or a pasted redirect URL. A
// redirect URL must carry the state the consent URL was issued with.
func parseCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if q.Get("state") != state {
		return "", errors.New("state mismatch in pasted URL")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

func randomState() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
