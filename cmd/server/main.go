package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/anhhai680/deepwiki-sub000/internal/ai"
	"github.com/anhhai680/deepwiki-sub000/internal/auth"
	"github.com/anhhai680/deepwiki-sub000/internal/config"
	"github.com/anhhai680/deepwiki-sub000/internal/coordinator"
	"github.com/anhhai680/deepwiki-sub000/internal/engineerr"
	"github.com/anhhai680/deepwiki-sub000/internal/ingest"
	"github.com/anhhai680/deepwiki-sub000/internal/memory"
	"github.com/anhhai680/deepwiki-sub000/internal/query"
	"github.com/anhhai680/deepwiki-sub000/internal/store"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// queryRequestBody is the query endpoint's payload, matching §6's field
// table. RepoURL accepts either a single string or an array (multi-repo
// fan-out), so it is decoded into json.RawMessage and resolved afterward.
type queryRequestBody struct {
	RepoURL       json.RawMessage `json:"repo_url"`
	Messages      []messageBody   `json:"messages"`
	FilePath      string          `json:"filePath,omitempty"`
	Token         string          `json:"token,omitempty"`
	Type          string          `json:"type,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Model         string          `json:"model,omitempty"`
	Language      string          `json:"language,omitempty"`
	ExcludedDirs  string          `json:"excluded_dirs,omitempty"`
	ExcludedFiles string          `json:"excluded_files,omitempty"`
	IncludedDirs  string          `json:"included_dirs,omitempty"`
	IncludedFiles string          `json:"included_files,omitempty"`
}

type messageBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type structuredError struct {
	Error string `json:"error"`
}

// splitFilterList splits a newline-separated filter string into entries,
// per §6's four optional filter fields.
func splitFilterList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (b queryRequestBody) descriptors() ([]models.Descriptor, error) {
	var locators []string
	if len(b.RepoURL) == 0 {
		return nil, fmt.Errorf("missing repo_url")
	}
	if err := json.Unmarshal(b.RepoURL, &locators); err != nil {
		var single string
		if err := json.Unmarshal(b.RepoURL, &single); err != nil {
			return nil, fmt.Errorf("repo_url must be a string or array of strings")
		}
		locators = []string{single}
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("repo_url must not be empty")
	}

	hostKind := models.HostKind(b.Type)
	switch hostKind {
	case models.HostGithub, models.HostGitlab, models.HostBitbucket, models.HostLocal:
	case "":
		hostKind = models.HostLocal
	default:
		return nil, fmt.Errorf("unsupported host_kind: %s", b.Type)
	}

	descriptors := make([]models.Descriptor, 0, len(locators))
	for _, loc := range locators {
		descriptors = append(descriptors, models.Descriptor{
			HostKind:     hostKind,
			Locator:      loc,
			Credential:   b.Token,
			IncludeDirs:  splitFilterList(b.IncludedDirs),
			IncludeFiles: splitFilterList(b.IncludedFiles),
			ExcludeDirs:  splitFilterList(b.ExcludedDirs),
			ExcludeFiles: splitFilterList(b.ExcludedFiles),
		})
	}
	return descriptors, nil
}

func (b queryRequestBody) toQueryRequest(descriptors []models.Descriptor) models.QueryRequest {
	messages := make([]models.Message, 0, len(b.Messages))
	for _, m := range b.Messages {
		messages = append(messages, models.Message{Role: models.MessageRole(m.Role), Content: m.Content})
	}
	return models.QueryRequest{
		RepoRefs:       descriptors,
		Messages:       messages,
		PinnedFilePath: b.FilePath,
		Language:       b.Language,
		ProviderID:     b.Provider,
		ModelID:        b.Model,
		ExcludedDirs:   splitFilterList(b.ExcludedDirs),
		ExcludedFiles:  splitFilterList(b.ExcludedFiles),
		IncludedDirs:   splitFilterList(b.IncludedDirs),
		IncludedFiles:  splitFilterList(b.IncludedFiles),
	}
}

func validate(messages []models.Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	if messages[len(messages)-1].Role != models.RoleUser {
		return fmt.Errorf("last message must have role \"user\"")
	}
	return nil
}

func writeStructuredError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(structuredError{Error: err.Error()})
}

func main() {
	fs := pflag.NewFlagSet("engine-server", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting engine server")

	static, err := config.LoadStatic(cfg.ConfigDir)
	if err != nil {
		log.Fatalf("failed to load static config: %v", err)
	}

	var chunkStore store.ChunkStore
	if cfg.Database != "" {
		pg, err := store.NewPostgresStore(context.Background(), cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := pg.Migrate(context.Background(), static.Embedder.Dim); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		chunkStore = pg
	} else {
		fs, err := store.NewFileStore(cfg.RootDir)
		if err != nil {
			log.Fatalf("failed to open file store: %v", err)
		}
		chunkStore = fs
	}

	auth.InitializeAuth(
		cfg.Auth.JwtSecret,
		cfg.Auth.GithubClientID,
		cfg.Auth.GithubClientSecret,
		cfg.Auth.GithubRedirectURL,
		cfg.Auth.GithubAllowedOrg,
		cfg.Auth.Enabled,
	)

	resolver := config.NewResolver(cfg, static)
	sessions := memory.NewSessions(50, true)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": auth.IsAuthEnabled()})
	})
	if auth.IsAuthEnabled() {
		registerAuthRoutes(mux)
	}

	mux.HandleFunc("/config/models", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(static.Generator)
	}))

	mux.HandleFunc("/config/languages", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"supported_languages": map[string]string{
				"en": "English", "ja": "Japanese", "zh": "Chinese", "es": "Spanish",
				"fr": "French", "de": "German", "pt": "Portuguese", "ko": "Korean",
			},
			"default": "en",
		})
	}))

	mux.HandleFunc("/query", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handleQuery(w, r, chunkStore, resolver, sessions, cfg.RootDir)
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("engine server listening")
	log.Fatal(s.ListenAndServe())
}

func registerAuthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/github", func(w http.ResponseWriter, r *http.Request) {
		state := auth.GenerateState()
		http.SetCookie(w, &http.Cookie{
			Name: "oauth_state", Value: state, Path: "/", MaxAge: 600, HttpOnly: true,
			Secure: strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"), SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, auth.GetGithubLoginURL(state), http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		stateCookie, err := r.Cookie("oauth_state")
		if err != nil || stateCookie.Value != state {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}
		accessToken, err := auth.ExchangeCodeForToken(code)
		if err != nil {
			http.Error(w, "failed to exchange code for token", http.StatusInternalServerError)
			return
		}
		user, err := auth.GetGithubUser(accessToken)
		if err != nil {
			http.Error(w, "failed to get user info: "+err.Error(), http.StatusInternalServerError)
			return
		}
		token, err := auth.GenerateJWT(user)
		if err != nil {
			http.Error(w, "failed to generate token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name: "auth_token", Value: token, Path: "/", MaxAge: 86400, HttpOnly: true,
			Secure: strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"), SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.AuthResponse{User: *user, Token: token})
	})

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		var tokenString string
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenString = strings.TrimPrefix(h, "Bearer ")
		} else if c, err := r.Cookie("auth_token"); err == nil {
			tokenString = c.Value
		}
		if tokenString == "" {
			http.Error(w, "no authentication token", http.StatusUnauthorized)
			return
		}
		user, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.AuthResponse{User: *user, Token: tokenString})
	})

	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusOK)
	})
}

// handleQuery resolves descriptors from the request body, runs the Query
// Pipeline (single repo) or the Coordinator (multi-repo fan-out), and
// streams plain-text chunks terminated by the [DONE] sentinel. Validation
// and acquisition/ingestion failures are reported as a structured error
// before any stream begins, per §7's propagation policy. In the multi-repo
// case a failing sub-request is reported inside its own stream section.
func handleQuery(w http.ResponseWriter, r *http.Request, chunkStore store.ChunkStore, resolver *config.Resolver, sessions *memory.Sessions, rootDir string) {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStructuredError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}

	descriptors, err := body.descriptors()
	if err != nil {
		writeStructuredError(w, http.StatusBadRequest, err)
		return
	}
	req := body.toQueryRequest(descriptors)
	if err := validate(req.Messages); err != nil {
		writeStructuredError(w, http.StatusBadRequest, err)
		return
	}

	override := config.Override{ProviderID: body.Provider, ModelID: body.Model}
	sessionID := sessionIDFor(r)

	ingestPipeline := ingest.New(chunkStore, stubOrResolved(resolver, override), rootDir)
	pipeline := query.New(ingestPipeline, chunkStore, resolver, sessions)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	flusher, _ := w.(http.Flusher)
	writer := bufio.NewWriter(w)
	started := false
	sink := func(fragment string) {
		started = true
		_, _ = writer.WriteString(fragment)
		_ = writer.Flush()
		if flusher != nil {
			flusher.Flush()
		}
	}

	if len(descriptors) == 1 {
		if _, err := pipeline.Run(r.Context(), sessionID, descriptors[0], req, override, sink); err != nil {
			if !started {
				status := http.StatusInternalServerError
				if errors.Is(err, engineerr.ErrValidation) {
					status = http.StatusBadRequest
				}
				writeStructuredError(w, status, err)
				return
			}
			sink(fmt.Sprintf("\nerror: %v\n", err))
		}
		sink("\n" + coordinator.Sentinel)
		return
	}

	c := coordinator.New(pipeline)
	_, _ = c.FanOut(r.Context(), sessionID, descriptors, req, override, sink)
}

// stubOrResolved constructs the embedding provider the ingestion pipeline
// uses, resolved from the same override the generation call will use so
// embedding and chat stay on the same configured provider/model pairing.
func stubOrResolved(resolver *config.Resolver, override config.Override) ai.Provider {
	cfg, err := resolver.Resolve(override)
	if err != nil {
		return ai.NewStub(0)
	}
	provider, err := ai.NewProvider(context.Background(), cfg)
	if err != nil {
		return ai.NewStub(cfg.Dim)
	}
	return provider
}

func sessionIDFor(r *http.Request) string {
	if c, err := r.Cookie("session_id"); err == nil && c.Value != "" {
		return c.Value
	}
	if u := auth.GetUserFromContext(r); u != nil {
		return u.Login
	}
	return r.RemoteAddr
}
