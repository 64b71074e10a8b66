// Package catalog loads the prompt and sound asset catalogs from on-disk
// newline-delimited JSON files and serves random, filtered samples to the
// game state machine. Ingestion itself (where the catalog files come from,
// how they are curated) is outside this system's scope; this package only
// implements the sampling interface the rest of the game depends on.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/metrics"
)

// PromptEntry is a single sampleable prompt.
type PromptEntry struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Adult    bool   `json:"adult"`
	AudioRef string `json:"audioRef,omitempty"`
}

// SoundEntry is a single sampleable sound effect.
type SoundEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Adult    bool   `json:"adult"`
}

// rawEntry is the on-disk shape for both catalogs before validation.
type rawEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Adult    bool   `json:"adult"`
	AudioRef string `json:"audioRef"`
}

// Catalog serves prompt and sound samples from two on-disk files, caching
// the parsed form for CacheTTL and reloading on expiry or explicit
// Invalidate. Reload attempts are guarded by a circuit breaker: if the
// catalog directory is repeatedly unreadable, Sample* calls keep serving
// the last good snapshot (or an empty one) rather than hammering a broken
// disk on every game event.
type Catalog struct {
	promptPath string
	soundPath  string
	cacheTTL   time.Duration

	mu          sync.RWMutex
	prompts     []PromptEntry
	sounds      []SoundEntry
	loadedAt    time.Time
	everLoaded  bool
	reloadBreak *gobreaker.CircuitBreaker
}

// New returns a Catalog that will lazily load promptPath and soundPath on
// first use. cacheTTL of zero disables caching (reload on every access).
func New(promptPath, soundPath string, cacheTTL time.Duration) *Catalog {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "asset-catalog-reload",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
	return &Catalog{
		promptPath:  promptPath,
		soundPath:   soundPath,
		cacheTTL:    cacheTTL,
		reloadBreak: cb,
	}
}

// Invalidate forces the next Sample*/Categories call to reload from disk.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// EverLoaded reports whether the catalog has completed at least one load,
// successful or not. Used by the readiness probe.
func (c *Catalog) EverLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.everLoaded
}

func (c *Catalog) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	stale := !c.everLoaded || c.cacheTTL <= 0 || time.Since(c.loadedAt) > c.cacheTTL
	c.mu.RUnlock()
	if !stale {
		return
	}

	_, err := c.reloadBreak.Execute(func() (any, error) {
		prompts, err := loadPrompts(c.promptPath)
		if err != nil {
			return nil, err
		}
		sounds, err := loadSounds(c.soundPath)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.prompts = prompts
		c.sounds = sounds
		c.loadedAt = time.Now()
		c.everLoaded = true
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerFailures.WithLabelValues("asset-catalog-reload").Inc()
		}
		logging.Warn(ctx, "asset catalog reload degraded, serving last known snapshot", zap.Error(err))
		c.mu.Lock()
		c.everLoaded = true // an attempted load counts for readiness even on failure
		c.mu.Unlock()
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// SamplePrompts returns n distinct prompts, excluding identifiers in used.
// If the exclusion leaves fewer than n available, it falls back to the full
// pool (still honoring allowAdult). Fails soft: an empty catalog yields an
// empty slice.
func (c *Catalog) SamplePrompts(ctx context.Context, n int, used map[string]bool, allowAdult bool) []PromptEntry {
	defer prometheus.NewTimer(metrics.CatalogSampleDuration.WithLabelValues("prompts")).ObserveDuration()
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	pool := filterPrompts(c.prompts, allowAdult, used)
	if len(pool) < n {
		pool = filterPrompts(c.prompts, allowAdult, nil)
	}
	idx := distinctIndices(len(pool), n)
	out := make([]PromptEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

// SampleSounds returns n distinct sounds, optionally restricted to category
// (empty string means any category).
func (c *Catalog) SampleSounds(ctx context.Context, n int, category string, allowAdult bool) []SoundEntry {
	defer prometheus.NewTimer(metrics.CatalogSampleDuration.WithLabelValues("sounds")).ObserveDuration()
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	pool := filterSounds(c.sounds, allowAdult, category)
	idx := distinctIndices(len(pool), n)
	out := make([]SoundEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

// Categories lists the distinct sound categories present in the catalog.
func (c *Catalog) Categories(ctx context.Context) []string {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, s := range c.sounds {
		if s.Category == "" || seen[s.Category] {
			continue
		}
		seen[s.Category] = true
		out = append(out, s.Category)
	}
	return out
}

func filterPrompts(all []PromptEntry, allowAdult bool, used map[string]bool) []PromptEntry {
	out := make([]PromptEntry, 0, len(all))
	for _, p := range all {
		if !allowAdult && p.Adult {
			continue
		}
		if used != nil && used[p.ID] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func filterSounds(all []SoundEntry, allowAdult bool, category string) []SoundEntry {
	out := make([]SoundEntry, 0, len(all))
	for _, s := range all {
		if !allowAdult && s.Adult {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}
	return out
}

// distinctIndices returns up to n distinct, uniformly random indices into
// [0, poolSize). If poolSize <= n, it returns all of them (shuffled).
func distinctIndices(poolSize, n int) []int {
	if poolSize == 0 || n <= 0 {
		return nil
	}
	if n > poolSize {
		n = poolSize
	}
	all := make([]int, poolSize)
	for i := range all {
		all[i] = i
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:n]
}

func loadPrompts(path string) ([]PromptEntry, error) {
	raws, err := readRawEntries(path)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]PromptEntry, 0, len(raws))
	for _, r := range raws {
		text := normalizeName(r.Text)
		if r.ID == "" || text == "" {
			continue
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, PromptEntry{ID: r.ID, Text: text, Category: r.Category, Adult: r.Adult, AudioRef: r.AudioRef})
	}
	return out, nil
}

func loadSounds(path string) ([]SoundEntry, error) {
	raws, err := readRawEntries(path)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]SoundEntry, 0, len(raws))
	for _, r := range raws {
		name := normalizeName(r.Name)
		if r.ID == "" || name == "" {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, SoundEntry{ID: r.ID, Name: name, Category: r.Category, Adult: r.Adult})
	}
	return out, nil
}

func readRawEntries(path string) ([]rawEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []rawEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r rawEntry
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue // discard malformed lines rather than fail the whole load
		}
		out = append(out, r)
	}
	return out, scanner.Err()
}

// normalizeName decodes escape sequences, strips surrounding quotes,
// canonicalizes to NFC, and title-cases the result, so the same name in a
// decomposed Unicode form dedupes against its composed twin. It is
// intentionally forgiving: callers treat an empty result as "discard this
// entry".
func normalizeName(raw string) string {
	s := strings.TrimSpace(raw)
	if unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`); err == nil {
		s = unquoted
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	return titleCase(s)
}

// placeholderToken is the substitution marker prompt text may carry (see
// game.AnyToken). Title-casing must leave it exactly as "<ANY>": it is a
// protocol token the game state machine matches literally, not a word.
const placeholderToken = "<ANY>"

func titleCase(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		if strings.EqualFold(f, placeholderToken) {
			fields[i] = placeholderToken
			continue
		}
		r := []rune(f)
		r[0] = unicode.ToTitle(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}
